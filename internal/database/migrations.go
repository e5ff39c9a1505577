package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createCoursesTable,
		createSlotsTable,
		createHoldsTable,
		createDiscountCodesTable,
		createDiscountReservationsTable,
		createAffiliatesTable,
		createBookingsTable,
		createDiscountRedemptionsTable,
		createCommissionsTable,
		createPaymentRecordsTable,
		createProcessedPaymentEventsTable,
		createReconciliationsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		slog.Debug("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully", "count", len(migrations))
	return nil
}

// Truncate empties every table; used by the generator's -clear flag and tests.
func (db *DB) Truncate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `TRUNCATE reconciliations, processed_payment_events, payment_records,
commissions, discount_redemptions, discount_reservations, bookings, affiliates, discount_codes, holds, slots, courses CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

const createCoursesTable = `
CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    slug VARCHAR(100) UNIQUE NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    location VARCHAR(255) NOT NULL DEFAULT '',
    timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
    weekday_price NUMERIC(12,2) NOT NULL CHECK (weekday_price >= 0),
    weekend_price NUMERIC(12,2) NOT NULL CHECK (weekend_price >= 0),
    currency VARCHAR(3) NOT NULL DEFAULT 'USD',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createSlotsTable = `
CREATE TABLE IF NOT EXISTS slots (
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    play_date DATE NOT NULL,
    start_time VARCHAR(5) NOT NULL,
    capacity INTEGER NOT NULL CHECK (capacity >= 0),
    held_count INTEGER NOT NULL DEFAULT 0 CHECK (held_count >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (course_id, play_date, start_time),
    CHECK (held_count <= capacity)
);`

const createHoldsTable = `
CREATE TABLE IF NOT EXISTS holds (
    token UUID PRIMARY KEY,
    course_id UUID NOT NULL,
    play_date DATE NOT NULL,
    start_time VARCHAR(5) NOT NULL,
    players INTEGER NOT NULL CHECK (players >= 1),
    status VARCHAR(20) NOT NULL DEFAULT 'held',
    idempotency_key VARCHAR(255) NOT NULL DEFAULT '',
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    FOREIGN KEY (course_id, play_date, start_time) REFERENCES slots(course_id, play_date, start_time) ON DELETE CASCADE,
    CHECK (status IN ('held', 'committed', 'released'))
);`

const createDiscountCodesTable = `
CREATE TABLE IF NOT EXISTS discount_codes (
    id UUID PRIMARY KEY,
    code VARCHAR(64) UNIQUE NOT NULL,
    discount_type VARCHAR(20) NOT NULL,
    value NUMERIC(12,4) NOT NULL CHECK (value >= 0),
    expires_at TIMESTAMPTZ,
    max_uses INTEGER CHECK (max_uses >= 0),
    current_uses INTEGER NOT NULL DEFAULT 0 CHECK (current_uses >= 0),
    reserved_uses INTEGER NOT NULL DEFAULT 0 CHECK (reserved_uses >= 0),
    min_booking_value NUMERIC(12,2),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (discount_type IN ('percentage', 'fixed_amount')),
    CONSTRAINT discount_codes_percentage_fraction CHECK (discount_type <> 'percentage' OR value <= 1),
    CHECK (max_uses IS NULL OR current_uses + reserved_uses <= max_uses)
);`

const createDiscountReservationsTable = `
CREATE TABLE IF NOT EXISTS discount_reservations (
    hold_token UUID PRIMARY KEY,
    discount_code_id UUID NOT NULL REFERENCES discount_codes(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'reserved',
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('reserved', 'redeemed', 'released'))
);`

const createAffiliatesTable = `
CREATE TABLE IF NOT EXISTS affiliates (
    id UUID PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    referral_code VARCHAR(64) UNIQUE NOT NULL,
    commission_rate NUMERIC(5,4) NOT NULL CHECK (commission_rate >= 0 AND commission_rate <= 1),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES courses(id),
    play_date DATE NOT NULL,
    start_time VARCHAR(5) NOT NULL,
    players INTEGER NOT NULL CHECK (players >= 1),
    total_price NUMERIC(12,2) NOT NULL CHECK (total_price >= 0),
    currency VARCHAR(3) NOT NULL,
    discount_code_id UUID REFERENCES discount_codes(id),
    affiliate_id UUID REFERENCES affiliates(id),
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_ref VARCHAR(255) NOT NULL DEFAULT '',
    gateway_order_id VARCHAR(255) NOT NULL DEFAULT '',
    idempotency_key VARCHAR(255) UNIQUE NOT NULL,
    request_fingerprint VARCHAR(64) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'confirmed', 'cancelled', 'refunded'))
);`

const createDiscountRedemptionsTable = `
CREATE TABLE IF NOT EXISTS discount_redemptions (
    booking_id UUID PRIMARY KEY REFERENCES bookings(id) ON DELETE CASCADE,
    discount_code_id UUID NOT NULL REFERENCES discount_codes(id),
    redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createCommissionsTable = `
CREATE TABLE IF NOT EXISTS commissions (
    id UUID PRIMARY KEY,
    affiliate_id UUID NOT NULL REFERENCES affiliates(id),
    booking_id UUID UNIQUE NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
    amount NUMERIC(12,2) NOT NULL CHECK (amount >= 0),
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'paid', 'cancelled'))
);`

const createPaymentRecordsTable = `
CREATE TABLE IF NOT EXISTS payment_records (
    gateway_order_id VARCHAR(255) PRIMARY KEY,
    provider VARCHAR(50) NOT NULL,
    capture_id VARCHAR(255) NOT NULL DEFAULT '',
    amount NUMERIC(12,2) NOT NULL,
    currency VARCHAR(3) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    booking_id UUID,
    idempotency_key VARCHAR(255) UNIQUE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'succeeded', 'failed', 'refunded'))
);`

const createProcessedPaymentEventsTable = `
CREATE TABLE IF NOT EXISTS processed_payment_events (
    event_id VARCHAR(128) PRIMARY KEY,
    provider VARCHAR(50) NOT NULL,
    event_type VARCHAR(50) NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createReconciliationsTable = `
CREATE TABLE IF NOT EXISTS reconciliations (
    id UUID PRIMARY KEY,
    booking_id UUID,
    gateway_order_id VARCHAR(255) NOT NULL,
    reason VARCHAR(50) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    status VARCHAR(20) NOT NULL DEFAULT 'open',
    note TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ,

    CHECK (status IN ('open', 'resolved'))
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS holds_expiry_idx ON holds (expires_at) WHERE status = 'held';
CREATE INDEX IF NOT EXISTS discount_reservations_expiry_idx ON discount_reservations (expires_at) WHERE status = 'reserved';
CREATE INDEX IF NOT EXISTS reconciliations_order_idx ON reconciliations (gateway_order_id) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS bookings_slot_idx ON bookings (course_id, play_date) WHERE status IN ('pending', 'confirmed');
CREATE INDEX IF NOT EXISTS payment_records_capture_idx ON payment_records (capture_id);
CREATE INDEX IF NOT EXISTS reconciliations_open_idx ON reconciliations (created_at) WHERE status = 'open';`
