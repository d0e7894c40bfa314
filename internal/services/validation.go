package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rebatewise/backend/internal/ledger"
)

// APIResponse is the uniform envelope: either success with data or a
// structured error, never partial success.
type APIResponse struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := APIResponse{Success: false, Error: message}
	var vErrs validator.ValidationErrors
	if errors.As(validationErr, &vErrs) {
		resp.Details = make(map[string]string)
		for _, err := range vErrs {
			resp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(resp)
}

// SendSuccessResponse sends a JSON success envelope
func SendSuccessResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

// SendLedgerError maps the ledger failure taxonomy onto HTTP statuses.
// Business-rule rejections surface with their structured message;
// infrastructure faults surface as a generic 500 so internals never leak.
func SendLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
	case errors.Is(err, ledger.ErrInvalidStatusTransition):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	default:
		SendErrorResponse(w, "Failed to process ledger operation", http.StatusInternalServerError, nil)
	}
}
