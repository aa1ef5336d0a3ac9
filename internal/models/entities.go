package models

import (
	"time"
)

// Booking lifecycle statuses. Transitions are monotonic: pending->confirmed,
// pending->cancelled, confirmed->cancelled; cancelled is terminal.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	LedgerOpReserve = "reserve"
	LedgerOpRelease = "release"
)

// User represents a user in the system
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	Surname      string    `json:"surname" db:"surname"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// Event represents an event in the system. Capacity is the immutable upper
// bound once tickets are sold; available_tickets only changes through the
// capacity coordinator or an explicit admin update.
type Event struct {
	ID               int64     `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	Description      *string   `json:"description" db:"description"`
	Capacity         int       `json:"capacity" db:"capacity"`
	AvailableTickets int       `json:"available_tickets" db:"available_tickets"`
	PriceCents       int64     `json:"price_cents" db:"price_cents"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	StartsAt         time.Time `json:"starts_at" db:"starts_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Booking represents a booking in the system. Bookings are never physically
// deleted; cancellation is a status change.
type Booking struct {
	ID                   int64      `json:"id" db:"id"`
	EventID              int64      `json:"event_id" db:"event_id"`
	UserID               int64      `json:"user_id" db:"user_id"`
	TicketQuantity       int        `json:"ticket_quantity" db:"ticket_quantity"`
	TotalAmountCents     int64      `json:"total_amount_cents" db:"total_amount_cents"`
	Status               string     `json:"status" db:"status"`
	PaymentStatus        string     `json:"payment_status" db:"payment_status"`
	PaymentTransactionID *string    `json:"payment_transaction_id,omitempty" db:"payment_transaction_id"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	BookingDate          time.Time  `json:"booking_date" db:"booking_date"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// CapacityLedgerEntry is one row of the append-only audit trail: one entry
// per successful reserve/release. BookingID is set on releases (and enforces
// at-most-once release per booking) but is unknown at reserve time.
type CapacityLedgerEntry struct {
	ID         int64     `json:"id" db:"id"`
	EventID    int64     `json:"event_id" db:"event_id"`
	Operation  string    `json:"operation" db:"operation"`
	Quantity   int       `json:"quantity" db:"quantity"`
	BookingID  *int64    `json:"booking_id,omitempty" db:"booking_id"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// CapacityDrift is the reconciliation view of one event: ledger-reserved
// quantity that no live booking accounts for.
type CapacityDrift struct {
	EventID  int64 `json:"event_id"`
	Quantity int   `json:"quantity"`
}
