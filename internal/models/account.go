package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the denormalized running totals for a single user.
// The row is created lazily on the user's first ledger activity and is
// mutated only by ledger procedures under a row-level lock.
type Account struct {
	UserID                  string          `json:"user_id" db:"user_id"`
	TotalEarned             decimal.Decimal `json:"total_earned" db:"total_earned"`
	TotalDeposit            decimal.Decimal `json:"total_deposit" db:"total_deposit"`
	TotalWithdrawn          decimal.Decimal `json:"total_withdrawn" db:"total_withdrawn"`
	TotalPendingWithdrawals decimal.Decimal `json:"total_pending_withdrawals" db:"total_pending_withdrawals"`
	TotalOrders             decimal.Decimal `json:"total_orders" db:"total_orders"`
	UpdatedAt               time.Time       `json:"updated_at" db:"updated_at"`
}

// AvailableBalance derives the spendable balance. It is never stored:
// earned + deposit - withdrawn - pending withdrawals - orders.
func (a *Account) AvailableBalance() decimal.Decimal {
	return a.TotalEarned.
		Add(a.TotalDeposit).
		Sub(a.TotalWithdrawn).
		Sub(a.TotalPendingWithdrawals).
		Sub(a.TotalOrders)
}

// BalanceSnapshot is the read model returned by the balance enquiry.
type BalanceSnapshot struct {
	UserID                  string          `json:"user_id"`
	TotalEarned             decimal.Decimal `json:"total_earned"`
	TotalDeposit            decimal.Decimal `json:"total_deposit"`
	TotalWithdrawn          decimal.Decimal `json:"total_withdrawn"`
	TotalPendingWithdrawals decimal.Decimal `json:"total_pending_withdrawals"`
	TotalOrders             decimal.Decimal `json:"total_orders"`
	AvailableBalance        decimal.Decimal `json:"available_balance"`
}

// Snapshot converts the account row into its read model.
func (a *Account) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		UserID:                  a.UserID,
		TotalEarned:             a.TotalEarned,
		TotalDeposit:            a.TotalDeposit,
		TotalWithdrawn:          a.TotalWithdrawn,
		TotalPendingWithdrawals: a.TotalPendingWithdrawals,
		TotalOrders:             a.TotalOrders,
		AvailableBalance:        a.AvailableBalance(),
	}
}
