package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/rebatewise/backend/internal/models"
)

// Service implements the ledger procedures. Every procedure runs as one
// SQL transaction: the account row is locked FOR UPDATE, the running
// totals are mutated, the ledger row is appended and (for lifecycle
// transitions) the immutable event is appended — all commit or roll back
// together. Operations on different users never contend; operations on
// the same user serialize on the row lock.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// TransactionResult bundles the appended ledger row, the immutable event
// (nil for plain credits) and the refreshed account snapshot so callers
// need no follow-up read.
type TransactionResult struct {
	Transaction *models.Transaction    `json:"transaction"`
	Event       *models.ImmutableEvent `json:"event,omitempty"`
	Account     models.BalanceSnapshot `json:"account"`
}

// AddCashback credits total_earned. Pure credit, no prior state required.
func (s *Service) AddCashback(ctx context.Context, userID string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*TransactionResult, error) {
	return s.credit(ctx, userID, amount, referenceID, models.TxCashback, metadata)
}

// AddReferralCommission credits total_earned for a referral grant.
func (s *Service) AddReferralCommission(ctx context.Context, userID string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*TransactionResult, error) {
	return s.credit(ctx, userID, amount, referenceID, models.TxReferral, metadata)
}

// AddDeposit credits total_deposit.
func (s *Service) AddDeposit(ctx context.Context, userID string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*TransactionResult, error) {
	return s.credit(ctx, userID, amount, referenceID, models.TxDeposit, metadata)
}

func (s *Service) credit(ctx context.Context, userID string, amount decimal.Decimal, referenceID, txType string, metadata models.Metadata) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: txType, Err: err}
	}
	defer tx.Rollback()

	if err := s.checkDuplicate(ctx, tx, referenceID, txType); err != nil {
		return nil, err
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, &DatabaseError{Op: txType, Err: err}
	}

	if txType == models.TxDeposit {
		account.TotalDeposit = account.TotalDeposit.Add(amount)
	} else {
		account.TotalEarned = account.TotalEarned.Add(amount)
	}

	if err := s.saveAccount(ctx, tx, account); err != nil {
		return nil, &DatabaseError{Op: txType, Err: err}
	}

	txn, err := s.appendTransaction(ctx, tx, userID, txType, amount, referenceID, metadata)
	if err != nil {
		return nil, &DatabaseError{Op: txType, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &DatabaseError{Op: txType, Err: err}
	}

	return &TransactionResult{Transaction: txn, Account: account.Snapshot()}, nil
}

// ReverseReferralCommission debits total_earned for a clawed-back
// referral grant. The ledger row carries a negative amount; the account
// total is clamped at zero so a reversal can never drive it negative.
func (s *Service) ReverseReferralCommission(ctx context.Context, userID string, amount decimal.Decimal, referenceID, reason string, metadata models.Metadata) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxReferralReversed, Err: err}
	}
	defer tx.Rollback()

	if err := s.checkDuplicate(ctx, tx, referenceID, models.TxReferralReversed); err != nil {
		return nil, err
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxReferralReversed, Err: err}
	}

	account.TotalEarned = clamp(account.TotalEarned.Sub(amount))

	if err := s.saveAccount(ctx, tx, account); err != nil {
		return nil, &DatabaseError{Op: models.TxReferralReversed, Err: err}
	}

	if metadata == nil {
		metadata = models.Metadata{}
	}
	metadata["reason"] = reason

	txn, err := s.appendTransaction(ctx, tx, userID, models.TxReferralReversed, amount.Neg(), referenceID, metadata)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxReferralReversed, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &DatabaseError{Op: models.TxReferralReversed, Err: err}
	}

	return &TransactionResult{Transaction: txn, Account: account.Snapshot()}, nil
}

// CreateWithdrawal reserves amount from the available balance by moving
// it into total_pending_withdrawals. The withdrawal starts in Processing.
func (s *Service) CreateWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxWithdrawalProcessing, Err: err}
	}
	defer tx.Rollback()

	if err := s.checkDuplicate(ctx, tx, referenceID, models.TxWithdrawalProcessing); err != nil {
		return nil, err
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxWithdrawalProcessing, Err: err}
	}

	if account.AvailableBalance().LessThan(amount) {
		return nil, &InsufficientBalanceError{
			UserID:    userID,
			Available: account.AvailableBalance(),
			Requested: amount,
		}
	}

	account.TotalPendingWithdrawals = account.TotalPendingWithdrawals.Add(amount)

	if err := s.saveAccount(ctx, tx, account); err != nil {
		return nil, &DatabaseError{Op: models.TxWithdrawalProcessing, Err: err}
	}

	txn, err := s.appendTransaction(ctx, tx, userID, models.TxWithdrawalProcessing, amount, referenceID, metadata)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxWithdrawalProcessing, Err: err}
	}

	event, err := s.appendEvent(ctx, tx, txn.ID, "withdrawal_status_changed", models.EventData{
		OldStatus: "",
		NewStatus: string(WithdrawalProcessing),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return nil, &DatabaseError{Op: models.TxWithdrawalProcessing, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &DatabaseError{Op: models.TxWithdrawalProcessing, Err: err}
	}

	return &TransactionResult{Transaction: txn, Event: event, Account: account.Snapshot()}, nil
}

// ChangeWithdrawalStatus applies one step of the withdrawal state machine.
// The recorded state for referenceID must still equal oldStatus; replaying
// a transition after it has been applied is rejected, which makes every
// transition at-most-once and prevents double-crediting total_withdrawn.
func (s *Service) ChangeWithdrawalStatus(ctx context.Context, userID, referenceID, oldStatus, newStatus string, amount decimal.Decimal, metadata models.Metadata, actorID, actorAction string) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	from, err := ParseWithdrawalStatus(oldStatus)
	if err != nil {
		return nil, &InvalidStatusTransitionError{ReferenceID: referenceID, OldStatus: oldStatus, NewStatus: newStatus, Reason: err.Error()}
	}
	to, err := ParseWithdrawalStatus(newStatus)
	if err != nil {
		return nil, &InvalidStatusTransitionError{ReferenceID: referenceID, OldStatus: oldStatus, NewStatus: newStatus, Reason: err.Error()}
	}
	if !from.CanTransitionTo(to) {
		return nil, &InvalidStatusTransitionError{ReferenceID: referenceID, OldStatus: string(from), NewStatus: string(to), Reason: "transition not allowed"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "change_withdrawal_status", Err: err}
	}
	defer tx.Rollback()

	recorded, err := s.recordedWithdrawalStatus(ctx, tx, userID, referenceID)
	if err != nil {
		return nil, err
	}
	if recorded != from {
		return nil, &InvalidStatusTransitionError{
			ReferenceID: referenceID,
			OldStatus:   string(from),
			NewStatus:   string(to),
			Reason:      "recorded status is " + string(recorded),
		}
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, &DatabaseError{Op: "change_withdrawal_status", Err: err}
	}

	// Release the reservation; clamp so a stale pending total can never
	// push the column negative.
	account.TotalPendingWithdrawals = clamp(account.TotalPendingWithdrawals.Sub(amount))
	if to == WithdrawalCompleted {
		account.TotalWithdrawn = account.TotalWithdrawn.Add(amount)
	}

	if err := s.saveAccount(ctx, tx, account); err != nil {
		return nil, &DatabaseError{Op: "change_withdrawal_status", Err: err}
	}

	txn, err := s.appendTransaction(ctx, tx, userID, to.transactionType(), amount, referenceID, metadata)
	if err != nil {
		return nil, &DatabaseError{Op: "change_withdrawal_status", Err: err}
	}

	event, err := s.appendEvent(ctx, tx, txn.ID, "withdrawal_status_changed", models.EventData{
		OldStatus:   string(from),
		NewStatus:   string(to),
		ActorID:     actorID,
		ActorAction: actorAction,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		return nil, &DatabaseError{Op: "change_withdrawal_status", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &DatabaseError{Op: "change_withdrawal_status", Err: err}
	}

	return &TransactionResult{Transaction: txn, Event: event, Account: account.Snapshot()}, nil
}

// CreateOrder reserves amount against total_orders. Unlike a withdrawal
// the debit is applied immediately; cancelling releases it, completing
// leaves it permanent.
func (s *Service) CreateOrder(ctx context.Context, userID string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxOrderCreated, Err: err}
	}
	defer tx.Rollback()

	if err := s.checkDuplicate(ctx, tx, referenceID, models.TxOrderCreated); err != nil {
		return nil, err
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxOrderCreated, Err: err}
	}

	if account.AvailableBalance().LessThan(amount) {
		return nil, &InsufficientBalanceError{
			UserID:    userID,
			Available: account.AvailableBalance(),
			Requested: amount,
		}
	}

	account.TotalOrders = account.TotalOrders.Add(amount)

	if err := s.saveAccount(ctx, tx, account); err != nil {
		return nil, &DatabaseError{Op: models.TxOrderCreated, Err: err}
	}

	txn, err := s.appendTransaction(ctx, tx, userID, models.TxOrderCreated, amount, referenceID, metadata)
	if err != nil {
		return nil, &DatabaseError{Op: models.TxOrderCreated, Err: err}
	}

	event, err := s.appendEvent(ctx, tx, txn.ID, "order_status_changed", models.EventData{
		OldStatus: "",
		NewStatus: string(OrderOpen),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return nil, &DatabaseError{Op: models.TxOrderCreated, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &DatabaseError{Op: models.TxOrderCreated, Err: err}
	}

	return &TransactionResult{Transaction: txn, Event: event, Account: account.Snapshot()}, nil
}

// ChangeOrderStatus applies one step of the order state machine with the
// same at-most-once guarantee as withdrawals. Completing an order leaves
// the total_orders debit in place; cancelling releases it.
func (s *Service) ChangeOrderStatus(ctx context.Context, userID, referenceID, oldStatus, newStatus string, amount decimal.Decimal, metadata models.Metadata, actorID, actorAction string) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	from, err := ParseOrderStatus(oldStatus)
	if err != nil {
		return nil, &InvalidStatusTransitionError{ReferenceID: referenceID, OldStatus: oldStatus, NewStatus: newStatus, Reason: err.Error()}
	}
	to, err := ParseOrderStatus(newStatus)
	if err != nil {
		return nil, &InvalidStatusTransitionError{ReferenceID: referenceID, OldStatus: oldStatus, NewStatus: newStatus, Reason: err.Error()}
	}
	if !from.CanTransitionTo(to) {
		return nil, &InvalidStatusTransitionError{ReferenceID: referenceID, OldStatus: string(from), NewStatus: string(to), Reason: "transition not allowed"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "change_order_status", Err: err}
	}
	defer tx.Rollback()

	recorded, err := s.recordedOrderStatus(ctx, tx, userID, referenceID)
	if err != nil {
		return nil, err
	}
	if recorded != from {
		return nil, &InvalidStatusTransitionError{
			ReferenceID: referenceID,
			OldStatus:   string(from),
			NewStatus:   string(to),
			Reason:      "recorded status is " + string(recorded),
		}
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, &DatabaseError{Op: "change_order_status", Err: err}
	}

	if to == OrderCancelled {
		account.TotalOrders = clamp(account.TotalOrders.Sub(amount))
	}

	if err := s.saveAccount(ctx, tx, account); err != nil {
		return nil, &DatabaseError{Op: "change_order_status", Err: err}
	}

	txn, err := s.appendTransaction(ctx, tx, userID, to.transactionType(), amount, referenceID, metadata)
	if err != nil {
		return nil, &DatabaseError{Op: "change_order_status", Err: err}
	}

	event, err := s.appendEvent(ctx, tx, txn.ID, "order_status_changed", models.EventData{
		OldStatus:   string(from),
		NewStatus:   string(to),
		ActorID:     actorID,
		ActorAction: actorAction,
		Timestamp:   time.Now().Unix(),
	})
	if err != nil {
		return nil, &DatabaseError{Op: "change_order_status", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &DatabaseError{Op: "change_order_status", Err: err}
	}

	return &TransactionResult{Transaction: txn, Event: event, Account: account.Snapshot()}, nil
}

// GetAvailableBalance is the O(1) read path: a single row read, no ledger
// scan and no lock. Unknown users get a zeroed snapshot without creating
// an account row.
func (s *Service) GetAvailableBalance(ctx context.Context, userID string) (models.BalanceSnapshot, error) {
	var account models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_earned, total_deposit, total_withdrawn, total_pending_withdrawals, total_orders, updated_at
		FROM accounts
		WHERE user_id = $1`, userID).
		Scan(&account.UserID, &account.TotalEarned, &account.TotalDeposit, &account.TotalWithdrawn,
			&account.TotalPendingWithdrawals, &account.TotalOrders, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		zero := models.Account{UserID: userID}
		return zero.Snapshot(), nil
	}
	if err != nil {
		return models.BalanceSnapshot{}, &DatabaseError{Op: "get_available_balance", Err: err}
	}
	return account.Snapshot(), nil
}

// ListTransactions returns the user's ledger history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, reference_id, metadata, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, &DatabaseError{Op: "list_transactions", Err: err}
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetTransactionsByReference returns every ledger row for a reference,
// oldest first, so a caller can reconstruct a lifecycle after a timeout.
func (s *Service) GetTransactionsByReference(ctx context.Context, referenceID string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, reference_id, metadata, created_at
		FROM transactions
		WHERE reference_id = $1
		ORDER BY created_at ASC`, referenceID)
	if err != nil {
		return nil, &DatabaseError{Op: "get_transactions_by_reference", Err: err}
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.ReferenceID, &t.Metadata, &t.CreatedAt); err != nil {
			return nil, &DatabaseError{Op: "scan_transactions", Err: err}
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "scan_transactions", Err: err}
	}
	return txns, nil
}

// lockAccount creates the account row if absent and locks it for the
// duration of the transaction. The insert-then-lock avoids the race
// between "check" and "create" on a user's first ledger activity.
func (s *Service) lockAccount(ctx context.Context, tx *sql.Tx, userID string) (*models.Account, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, err
	}

	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, total_earned, total_deposit, total_withdrawn, total_pending_withdrawals, total_orders, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE`, userID).
		Scan(&account.UserID, &account.TotalEarned, &account.TotalDeposit, &account.TotalWithdrawn,
			&account.TotalPendingWithdrawals, &account.TotalOrders, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Service) saveAccount(ctx context.Context, tx *sql.Tx, account *models.Account) error {
	account.UpdatedAt = time.Now()
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET total_earned = $1, total_deposit = $2, total_withdrawn = $3, total_pending_withdrawals = $4, total_orders = $5, updated_at = $6
		WHERE user_id = $7`,
		account.TotalEarned, account.TotalDeposit, account.TotalWithdrawn,
		account.TotalPendingWithdrawals, account.TotalOrders, account.UpdatedAt, account.UserID)
	return err
}

func (s *Service) appendTransaction(ctx context.Context, tx *sql.Tx, userID, txType string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*models.Transaction, error) {
	txn := &models.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		ReferenceID: referenceID,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, reference_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.ReferenceID, txn.Metadata, txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) appendEvent(ctx context.Context, tx *sql.Tx, transactionID, eventType string, data models.EventData) (*models.ImmutableEvent, error) {
	event := &models.ImmutableEvent{
		ID:            uuid.New().String(),
		TransactionID: transactionID,
		EventType:     eventType,
		EventData:     data,
		CreatedAt:     time.Now(),
	}
	payload, err := json.Marshal(event.EventData)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO immutable_events (id, transaction_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.TransactionID, event.EventType, payload, event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// checkDuplicate rejects a create that reuses a reference and type that
// already has a ledger row. A retry with the same referenceID is safe: it
// fails here without touching the account.
func (s *Service) checkDuplicate(ctx context.Context, tx *sql.Tx, referenceID, txType string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE reference_id = $1 AND type = $2)`,
		referenceID, txType).Scan(&exists)
	if err != nil {
		return &DatabaseError{Op: "check_duplicate", Err: err}
	}
	if exists {
		return ErrDuplicateTransaction
	}
	return nil
}

func (s *Service) recordedWithdrawalStatus(ctx context.Context, tx *sql.Tx, userID, referenceID string) (WithdrawalStatus, error) {
	txType, err := s.latestReferenceType(ctx, tx, userID, referenceID, []string{
		models.TxWithdrawalProcessing, models.TxWithdrawalCompleted, models.TxWithdrawalCancelled,
	})
	if err == sql.ErrNoRows {
		return "", &InvalidStatusTransitionError{ReferenceID: referenceID, Reason: "no withdrawal recorded for reference"}
	}
	if err != nil {
		return "", &DatabaseError{Op: "recorded_withdrawal_status", Err: err}
	}
	status, ok := withdrawalStatusFromTxType(txType)
	if !ok {
		return "", &InvalidStatusTransitionError{ReferenceID: referenceID, Reason: "unrecognized recorded type " + txType}
	}
	return status, nil
}

func (s *Service) recordedOrderStatus(ctx context.Context, tx *sql.Tx, userID, referenceID string) (OrderStatus, error) {
	txType, err := s.latestReferenceType(ctx, tx, userID, referenceID, []string{
		models.TxOrderCreated, models.TxOrderCompleted, models.TxOrderCancelled,
	})
	if err == sql.ErrNoRows {
		return "", &InvalidStatusTransitionError{ReferenceID: referenceID, Reason: "no order recorded for reference"}
	}
	if err != nil {
		return "", &DatabaseError{Op: "recorded_order_status", Err: err}
	}
	status, ok := orderStatusFromTxType(txType)
	if !ok {
		return "", &InvalidStatusTransitionError{ReferenceID: referenceID, Reason: "unrecognized recorded type " + txType}
	}
	return status, nil
}

func (s *Service) latestReferenceType(ctx context.Context, tx *sql.Tx, userID, referenceID string, types []string) (string, error) {
	var txType string
	err := tx.QueryRowContext(ctx, `
		SELECT type FROM transactions
		WHERE user_id = $1 AND reference_id = $2 AND type = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1`, userID, referenceID, pq.Array(types)).Scan(&txType)
	return txType, err
}

// clamp floors a total at zero. Applied only on release paths, where
// rejecting would strand money in limbo.
func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
