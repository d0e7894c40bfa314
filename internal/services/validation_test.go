package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/rebatewise/backend/internal/ledger"
)

type TestStruct struct {
	UserID      string `validate:"required"`
	ReferenceID string `validate:"required,min=3"`
	Currency    string `validate:"required,len=3"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := TestStruct{
			UserID:      "U1",
			ReferenceID: "REF-001",
			Currency:    "EUR",
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("invalid struct - missing required fields", func(t *testing.T) {
		invalid := TestStruct{
			ReferenceID: "R", // Too short
			Currency:    "EURO",
		}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3) // UserID, ReferenceID, Currency errors
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response APIResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.False(t, response.Success)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		invalid := TestStruct{
			ReferenceID: "R",
			Currency:    "EURO",
		}

		validationErr := vh.ValidateStruct(&invalid)
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response APIResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.NotNil(t, response.Details)
		assert.Contains(t, response.Details, "UserID")
		assert.Contains(t, response.Details, "ReferenceID")
		assert.Contains(t, response.Details, "Currency")
	})
}

func TestSendSuccessResponse(t *testing.T) {
	w := httptest.NewRecorder()

	SendSuccessResponse(w, http.StatusCreated, map[string]string{"id": "t1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response APIResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.True(t, response.Success)
	assert.Empty(t, response.Error)
}

func TestSendLedgerError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid amount", ledger.ErrInvalidAmount, http.StatusBadRequest},
		{"insufficient balance", ledger.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"invalid transition", ledger.ErrInvalidStatusTransition, http.StatusConflict},
		{"duplicate", ledger.ErrDuplicateTransaction, http.StatusConflict},
		{"infrastructure fault", assert.AnError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			SendLedgerError(w, tc.err)
			assert.Equal(t, tc.code, w.Code)
		})
	}

	t.Run("wrapped structured error keeps its category", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendLedgerError(w, &ledger.InvalidStatusTransitionError{
			ReferenceID: "W1", OldStatus: "Processing", NewStatus: "Completed", Reason: "recorded status is Completed",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("infrastructure fault does not leak internals", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendLedgerError(w, &ledger.DatabaseError{Op: "cashback", Err: assert.AnError})

		var response APIResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Failed to process ledger operation", response.Error)
	})
}

func TestNewValidationHelper(t *testing.T) {
	vh := NewValidationHelper()
	assert.NotNil(t, vh)
	assert.NotNil(t, vh.validator)
}
