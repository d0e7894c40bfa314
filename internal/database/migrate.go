package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migrate creates the ledger tables if they do not exist. The statements
// are idempotent so startup is safe to repeat. Money columns are NUMERIC,
// never floating point.
func Migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			user_id TEXT PRIMARY KEY,
			total_earned NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (total_earned >= 0),
			total_deposit NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (total_deposit >= 0),
			total_withdrawn NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (total_withdrawn >= 0),
			total_pending_withdrawals NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (total_pending_withdrawals >= 0),
			total_orders NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (total_orders >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC(18,2) NOT NULL,
			reference_id TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions (reference_id, type)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS immutable_events (
			id UUID PRIMARY KEY,
			transaction_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			event_data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_immutable_events_transaction ON immutable_events (transaction_id)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			actor_user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			before JSONB,
			after JSONB,
			ip_address TEXT,
			user_agent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs (resource_type, resource_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("Database migrations applied")
	return nil
}
