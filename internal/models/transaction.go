package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type enum. The set is closed; rows are append-only and
// never updated or deleted.
const (
	TxCashback             = "cashback"
	TxReferral             = "referral"
	TxReferralReversed     = "referral_reversed"
	TxDeposit              = "deposit"
	TxWithdrawalProcessing = "withdrawal_processing"
	TxWithdrawalCompleted  = "withdrawal_completed"
	TxWithdrawalCancelled  = "withdrawal_cancelled"
	TxOrderCreated         = "order_created"
	TxOrderCompleted       = "order_completed"
	TxOrderCancelled       = "order_cancelled"
)

// Transaction is one immutable ledger row. ReferenceID correlates the row
// to the external entity (withdrawal request, order, referral grant) and
// together with Type backs the idempotency checks.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Type        string          `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	ReferenceID string          `json:"reference_id" db:"reference_id"`
	Metadata    Metadata        `json:"metadata" db:"metadata"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
