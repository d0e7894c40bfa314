package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebatewise/backend/internal/ledger"
)

func creditAccountRows(userID, earned, deposit, withdrawn, pending, orders string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "total_earned", "total_deposit", "total_withdrawn", "total_pending_withdrawals", "total_orders", "updated_at",
	}).AddRow(userID, earned, deposit, withdrawn, pending, orders, time.Now())
}

func TestCashbackService_AddCashback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewCashbackService(ledger.NewService(db), NewBalanceCache(redisClient))

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT user_id, total_earned").
			WillReturnRows(creditAccountRows("U1", "0", "0", "0", "0", "0"))
		mock.ExpectExec("UPDATE accounts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		redisMock.ExpectDel("balance:U1").SetVal(1)

		body := `{"userId":"U1","amount":25.00,"referenceId":"R1"}`
		r := httptest.NewRequest("POST", "/cashback", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.AddCashback(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/cashback", bytes.NewBufferString("invalid"))
		w := httptest.NewRecorder()

		service.AddCashback(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		body := `{"userId":"U1","amount":25.00,"referenceId":"R1","bogus":true}`
		r := httptest.NewRequest("POST", "/cashback", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.AddCashback(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing userId fails validation", func(t *testing.T) {
		body := `{"amount":25.00,"referenceId":"R1"}`
		r := httptest.NewRequest("POST", "/cashback", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.AddCashback(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "UserID")
	})

	t.Run("zero amount rejected by ledger", func(t *testing.T) {
		body := `{"userId":"U1","amount":0,"referenceId":"R2"}`
		r := httptest.NewRequest("POST", "/cashback", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.AddCashback(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate reference conflicts", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		body := `{"userId":"U1","amount":25.00,"referenceId":"R1"}`
		r := httptest.NewRequest("POST", "/cashback", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.AddCashback(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCashbackService_ReverseReferralCommission(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewCashbackService(ledger.NewService(db), NewBalanceCache(redisClient))

	t.Run("successful reversal", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT user_id, total_earned").
			WillReturnRows(creditAccountRows("U1", "30.00", "0", "0", "0", "0"))
		mock.ExpectExec("UPDATE accounts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		redisMock.ExpectDel("balance:U1").SetVal(1)

		body := `{"userId":"U1","amount":5.00,"referenceId":"Ref1","reason":"referred account closed"}`
		r := httptest.NewRequest("POST", "/referrals/commission/reverse", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.ReverseReferralCommission(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("missing reason fails validation", func(t *testing.T) {
		body := `{"userId":"U1","amount":5.00,"referenceId":"Ref1"}`
		r := httptest.NewRequest("POST", "/referrals/commission/reverse", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		service.ReverseReferralCommission(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "Reason")
	})
}
