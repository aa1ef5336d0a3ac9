package models

// RPC subjects. Each carries exactly one request and one reply schema; the
// per-subject types below are the only payloads that cross the bus.
const (
	SubjectCapacityReserve       = "capacity.reserve"
	SubjectCapacityRelease       = "capacity.release"
	SubjectBookingCreate         = "booking.create"
	SubjectBookingCancel         = "booking.cancel"
	SubjectBookingConfirmPayment = "booking.confirmPayment"
	SubjectBookingValidate       = "booking.validate"
)

// Queue groups for the RPC services (competing consumers across replicas).
const (
	QueueCapacity = "capacity"
	QueueBooking  = "booking"
)

// RPCStatus is embedded in every reply. Error replies carry success=false
// plus a taxonomy code; see apperr.
type RPCStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func OK() RPCStatus {
	return RPCStatus{Success: true}
}

// ReserveCapacityRequest asks the owning service to decrement
// available_tickets if and only if enough remain.
type ReserveCapacityRequest struct {
	EventID  int64 `json:"event_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,min=1"`
}

type ReserveCapacityReply struct {
	RPCStatus
	Remaining int `json:"remaining"`
}

// ReleaseCapacityRequest credits quantity back. BookingID, when set, keys
// the release so retries cannot double-credit capacity.
type ReleaseCapacityRequest struct {
	EventID   int64  `json:"event_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	BookingID *int64 `json:"booking_id,omitempty"`
}

type ReleaseCapacityReply struct {
	RPCStatus
}

type CreateBookingRequest struct {
	EventID          int64  `json:"event_id" binding:"required"`
	UserID           int64  `json:"user_id"`
	TicketQuantity   int    `json:"ticket_quantity" binding:"required,min=1"`
	TotalAmountCents int64  `json:"total_amount_cents" binding:"min=0"`
	PaymentMethod    string `json:"payment_method,omitempty"`
}

type CancelBookingRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason,omitempty"`
}

type ConfirmPaymentRequest struct {
	BookingID            int64  `json:"booking_id" binding:"required"`
	PaymentTransactionID string `json:"payment_transaction_id" binding:"required"`
}

type BookingReply struct {
	RPCStatus
	Booking *Booking `json:"booking,omitempty"`
}

type ValidateBookingRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
	EventID   int64 `json:"event_id" binding:"required"`
}

type ValidateBookingReply struct {
	RPCStatus
	Valid   bool     `json:"valid"`
	Booking *Booking `json:"booking,omitempty"`
}
