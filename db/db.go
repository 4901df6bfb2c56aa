package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	starts_at TIMESTAMPTZ NOT NULL,
	capacity INT NOT NULL CHECK (capacity >= 1),
	available INT NOT NULL CHECK (available >= 0),
	price NUMERIC(12,2) NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	CHECK (available <= capacity)
);

CREATE TABLE IF NOT EXISTS ticket_types (
	ticket_type_id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (event_id),
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price NUMERIC(12,2) NOT NULL,
	capacity INT NOT NULL CHECK (capacity >= 1),
	available INT NOT NULL CHECK (available >= 0),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (event_id, name),
	CHECK (available <= capacity)
);

CREATE TABLE IF NOT EXISTS bookings (
	booking_id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	ticket_type_id UUID NULL,
	user_id TEXT NOT NULL,
	quantity INT NOT NULL CHECK (quantity >= 1),
	total_price NUMERIC(12,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	confirmation_code TEXT NOT NULL UNIQUE,
	booking_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	cancelled_date TIMESTAMPTZ NULL,
	refund_request_date TIMESTAMPTZ NULL,
	refund_processed_date TIMESTAMPTZ NULL,
	refund_amount NUMERIC(12,2) NULL,
	refund_reason TEXT NULL,
	refund_rejection_reason TEXT NULL,
	notes TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id);
CREATE INDEX IF NOT EXISTS bookings_event_id_idx ON bookings (event_id);
CREATE INDEX IF NOT EXISTS bookings_status_idx ON bookings (status);

CREATE TABLE IF NOT EXISTS tickets (
	ticket_id UUID PRIMARY KEY,
	booking_id UUID NOT NULL REFERENCES bookings (booking_id),
	confirmation_code TEXT NOT NULL,
	unique_code TEXT NOT NULL UNIQUE,
	ticket_index INT NOT NULL CHECK (ticket_index >= 1),
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	used_at TIMESTAMPTZ NULL,
	scan_count INT NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ NOT NULL,
	invalidated_at TIMESTAMPTZ NULL,
	UNIQUE (booking_id, ticket_index)
);

CREATE INDEX IF NOT EXISTS tickets_confirmation_code_idx ON tickets (confirmation_code);

CREATE TABLE IF NOT EXISTS check_ins (
	check_in_id UUID PRIMARY KEY,
	booking_id UUID NOT NULL,
	confirmation_code TEXT NOT NULL,
	scanner_id TEXT NOT NULL,
	scanner_type TEXT NOT NULL,
	location TEXT NOT NULL,
	quantity INT NOT NULL,
	checked_in_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS check_ins_checked_in_at_idx ON check_ins (checked_in_at);
`

func InitializeDatabaseSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}
	return nil
}
