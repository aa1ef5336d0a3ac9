package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createEventsTable,
		createBookingsTable,
		createBookingsActiveIndex,
		createCapacityLedgerTable,
		createLedgerReleaseOnceIndex,
		createLedgerEventIndex,
		createBookingsStaleIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(64) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    surname VARCHAR(100) NOT NULL,
    registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);`

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    description TEXT,
    capacity INTEGER NOT NULL CHECK (capacity >= 0),
    available_tickets INTEGER NOT NULL CHECK (available_tickets >= 0),
    price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    starts_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (available_tickets <= capacity)
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGSERIAL PRIMARY KEY,
    event_id BIGINT NOT NULL REFERENCES events(id),
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    ticket_quantity INTEGER NOT NULL CHECK (ticket_quantity >= 1),
    total_amount_cents BIGINT NOT NULL CHECK (total_amount_cents >= 0),
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_transaction_id VARCHAR(255),
    cancellation_reason TEXT,
    cancelled_at TIMESTAMPTZ,
    booking_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'confirmed', 'cancelled')),
    CHECK (payment_status IN ('pending', 'paid', 'failed', 'refunded'))
);`

// At most one non-cancelled booking per (user, event).
const createBookingsActiveIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_user_event_idx
ON bookings (user_id, event_id)
WHERE status <> 'cancelled';`

const createCapacityLedgerTable = `
CREATE TABLE IF NOT EXISTS capacity_ledger (
    id BIGSERIAL PRIMARY KEY,
    event_id BIGINT NOT NULL REFERENCES events(id),
    operation VARCHAR(10) NOT NULL CHECK (operation IN ('reserve', 'release')),
    quantity INTEGER NOT NULL CHECK (quantity >= 1),
    booking_id BIGINT,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// At most one release per booking; the conflict on this index is what makes
// capacity.release safe to retry.
const createLedgerReleaseOnceIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS capacity_ledger_release_once_idx
ON capacity_ledger (booking_id)
WHERE operation = 'release' AND booking_id IS NOT NULL;`

const createLedgerEventIndex = `
CREATE INDEX IF NOT EXISTS capacity_ledger_event_idx
ON capacity_ledger (event_id, recorded_at);`

const createBookingsStaleIndex = `
CREATE INDEX IF NOT EXISTS bookings_stale_pending_idx
ON bookings (booking_date)
WHERE status = 'pending';`
