package models

import "time"

// Notification subjects (fire-and-forget, no reply expected).
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentConfirmed = "booking.paymentConfirmed"
)

// BookingCreatedEvent announces a successfully persisted booking.
type BookingCreatedEvent struct {
	BookingID        int64     `json:"booking_id"`
	EventID          int64     `json:"event_id"`
	UserID           int64     `json:"user_id"`
	TicketQuantity   int       `json:"ticket_quantity"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Timestamp        time.Time `json:"timestamp"`
}

// BookingCancelledEvent announces a cancellation, including the sweeper's
// timeout cancellations.
type BookingCancelledEvent struct {
	BookingID      int64     `json:"booking_id"`
	EventID        int64     `json:"event_id"`
	UserID         int64     `json:"user_id"`
	TicketQuantity int       `json:"ticket_quantity"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentConfirmedEvent announces a booking moving to confirmed/paid.
type PaymentConfirmedEvent struct {
	BookingID     int64     `json:"booking_id"`
	EventID       int64     `json:"event_id"`
	UserID        int64     `json:"user_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}
