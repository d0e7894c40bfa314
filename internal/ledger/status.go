package ledger

import (
	"fmt"
	"strings"

	"github.com/rebatewise/backend/internal/models"
)

// WithdrawalStatus is the canonical withdrawal lifecycle enum.
// Processing is initial; Completed and Cancelled are terminal.
type WithdrawalStatus string

const (
	WithdrawalProcessing WithdrawalStatus = "Processing"
	WithdrawalCompleted  WithdrawalStatus = "Completed"
	WithdrawalCancelled  WithdrawalStatus = "Cancelled"
)

// OrderStatus is the canonical order lifecycle enum.
// Open is initial; Completed and Cancelled are terminal.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "Open"
	OrderCompleted OrderStatus = "Completed"
	OrderCancelled OrderStatus = "Cancelled"
)

// ParseWithdrawalStatus normalizes a caller-supplied status literal.
// Historical data carries mixed casings and the legacy literal "approved",
// which maps to Completed. Parsing is case-insensitive.
func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "processing":
		return WithdrawalProcessing, nil
	case "completed", "approved":
		return WithdrawalCompleted, nil
	case "cancelled", "canceled":
		return WithdrawalCancelled, nil
	}
	return "", fmt.Errorf("unknown withdrawal status %q", s)
}

// ParseOrderStatus normalizes a caller-supplied order status literal.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return OrderOpen, nil
	case "completed":
		return OrderCompleted, nil
	case "cancelled", "canceled":
		return OrderCancelled, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanTransitionTo reports whether next is a legal successor. Terminal
// states have no successors.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	if s != WithdrawalProcessing {
		return false
	}
	return next == WithdrawalCompleted || next == WithdrawalCancelled
}

// CanTransitionTo reports whether next is a legal successor.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s != OrderOpen {
		return false
	}
	return next == OrderCompleted || next == OrderCancelled
}

// transactionType maps an accepted withdrawal transition to its ledger
// transaction type.
func (s WithdrawalStatus) transactionType() string {
	switch s {
	case WithdrawalProcessing:
		return models.TxWithdrawalProcessing
	case WithdrawalCompleted:
		return models.TxWithdrawalCompleted
	case WithdrawalCancelled:
		return models.TxWithdrawalCancelled
	}
	return ""
}

func (s OrderStatus) transactionType() string {
	switch s {
	case OrderOpen:
		return models.TxOrderCreated
	case OrderCompleted:
		return models.TxOrderCompleted
	case OrderCancelled:
		return models.TxOrderCancelled
	}
	return ""
}

// withdrawalStatusFromTxType recovers the recorded lifecycle state from
// the most recent ledger row for a reference.
func withdrawalStatusFromTxType(txType string) (WithdrawalStatus, bool) {
	switch txType {
	case models.TxWithdrawalProcessing:
		return WithdrawalProcessing, true
	case models.TxWithdrawalCompleted:
		return WithdrawalCompleted, true
	case models.TxWithdrawalCancelled:
		return WithdrawalCancelled, true
	}
	return "", false
}

func orderStatusFromTxType(txType string) (OrderStatus, bool) {
	switch txType {
	case models.TxOrderCreated:
		return OrderOpen, true
	case models.TxOrderCompleted:
		return OrderCompleted, true
	case models.TxOrderCancelled:
		return OrderCancelled, true
	}
	return "", false
}
