// internal/store/postgres/schema.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full DDL for the lending engine. Statements are
// idempotent so EnsureSchema can run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	default_loan_period_days INT NOT NULL DEFAULT 0,
	default_max_renewals INT NOT NULL DEFAULT 0,
	late_fee_per_day NUMERIC(10,2) NOT NULL DEFAULT 0,
	is_loanable BOOLEAN NOT NULL DEFAULT TRUE,
	is_reservable BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	version INT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS books (
	id UUID PRIMARY KEY,
	isbn TEXT NOT NULL,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	status TEXT NOT NULL,
	is_loanable BOOLEAN NOT NULL DEFAULT TRUE,
	is_reference BOOLEAN NOT NULL DEFAULT FALSE,
	loan_period_days INT NOT NULL DEFAULT 0,
	max_renewals INT NOT NULL DEFAULT 0,
	replacement_cost NUMERIC(10,2) NOT NULL DEFAULT 0,
	category_id UUID REFERENCES categories(id),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version INT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS members (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	max_books_allowed INT NOT NULL,
	current_books_count INT NOT NULL DEFAULT 0,
	total_books_loaned INT NOT NULL DEFAULT 0,
	total_fines_owed NUMERIC(10,2) NOT NULL DEFAULT 0,
	total_fines_paid NUMERIC(10,2) NOT NULL DEFAULT 0,
	can_renew BOOLEAN NOT NULL DEFAULT TRUE,
	max_renewals INT NOT NULL,
	membership_end_date TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version INT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS credentials (
	member_id UUID PRIMARY KEY REFERENCES members(id),
	password_hash TEXT NOT NULL,
	salt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS loans (
	id UUID PRIMARY KEY,
	member_id UUID NOT NULL REFERENCES members(id),
	book_id UUID NOT NULL REFERENCES books(id),
	loan_date TIMESTAMPTZ NOT NULL,
	due_date TIMESTAMPTZ NOT NULL,
	return_date TIMESTAMPTZ,
	status TEXT NOT NULL,
	renewals_count INT NOT NULL DEFAULT 0,
	max_renewals INT NOT NULL,
	is_returned BOOLEAN NOT NULL DEFAULT FALSE,
	total_fines NUMERIC(10,2) NOT NULL DEFAULT 0,
	fines_paid NUMERIC(10,2) NOT NULL DEFAULT 0,
	late_fee_per_day NUMERIC(10,2) NOT NULL DEFAULT 0,
	processed_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version INT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_loans_member ON loans(member_id);
CREATE INDEX IF NOT EXISTS idx_loans_book_open ON loans(book_id)
	WHERE NOT is_returned AND status NOT IN ('cancelled', 'lost');

CREATE TABLE IF NOT EXISTS renewals (
	id UUID PRIMARY KEY,
	loan_id UUID NOT NULL REFERENCES loans(id),
	renewed_at TIMESTAMPTZ NOT NULL,
	previous_due_date TIMESTAMPTZ NOT NULL,
	new_due_date TIMESTAMPTZ NOT NULL,
	processed_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fines (
	id UUID PRIMARY KEY,
	loan_id UUID NOT NULL REFERENCES loans(id),
	member_id UUID NOT NULL REFERENCES members(id),
	amount NUMERIC(10,2) NOT NULL,
	amount_paid NUMERIC(10,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version INT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_fines_member ON fines(member_id);

CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	member_id UUID NOT NULL REFERENCES members(id),
	fine_id UUID REFERENCES fines(id),
	amount NUMERIC(10,2) NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	reference TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	version INT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_payments_member ON payments(member_id);
`

// EnsureSchema creates all tables and indexes if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
