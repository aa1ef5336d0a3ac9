package repository

import (
	"context"
	"database/sql"
	"time"

	"ticketd/internal/database"
	"ticketd/internal/models"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, event_id, user_id, ticket_quantity, total_amount_cents,
	status, payment_status, payment_transaction_id, cancellation_reason,
	cancelled_at, booking_date, updated_at`

func scanBooking(row interface{ Scan(...any) error }, b *models.Booking) error {
	return row.Scan(
		&b.ID,
		&b.EventID,
		&b.UserID,
		&b.TicketQuantity,
		&b.TotalAmountCents,
		&b.Status,
		&b.PaymentStatus,
		&b.PaymentTransactionID,
		&b.CancellationReason,
		&b.CancelledAt,
		&b.BookingDate,
		&b.UpdatedAt,
	)
}

func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (event_id, user_id, ticket_quantity, total_amount_cents, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, booking_date, updated_at`

	return r.db.QueryRowContext(ctx, query,
		booking.EventID,
		booking.UserID,
		booking.TicketQuantity,
		booking.TotalAmountCents,
		booking.Status,
		booking.PaymentStatus,
	).Scan(&booking.ID, &booking.BookingDate, &booking.UpdatedAt)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return booking, err
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID int64) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY booking_date DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var booking models.Booking
		if err := scanBooking(rows, &booking); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// HasActiveBooking reports whether the user already holds a non-cancelled
// booking for the event. A partial unique index backs the same invariant in
// the database.
func (r *BookingRepository) HasActiveBooking(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE user_id = $1 AND event_id = $2 AND status <> $3
		)`

	err := r.db.QueryRowContext(ctx, query, userID, eventID, models.BookingStatusCancelled).Scan(&exists)
	return exists, err
}

// MarkCancelled moves a non-cancelled booking to its terminal state.
func (r *BookingRepository) MarkCancelled(ctx context.Context, id int64, reason, paymentStatus string, cancelledAt time.Time) error {
	query := `
		UPDATE bookings
		SET status = $1, payment_status = $2, cancellation_reason = $3,
		    cancelled_at = $4, updated_at = NOW()
		WHERE id = $5 AND status <> $1`

	_, err := r.db.ExecContext(ctx, query,
		models.BookingStatusCancelled, paymentStatus, reason, cancelledAt, id)
	return err
}

// MarkConfirmed records a successful payment on a pending booking.
func (r *BookingRepository) MarkConfirmed(ctx context.Context, id int64, transactionID string) error {
	query := `
		UPDATE bookings
		SET status = $1, payment_status = $2, payment_transaction_id = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`

	_, err := r.db.ExecContext(ctx, query,
		models.BookingStatusConfirmed, models.PaymentStatusPaid, transactionID,
		id, models.BookingStatusPending)
	return err
}

// GetStalePending retrieves pending bookings created before the cutoff, for
// the expiry sweep.
func (r *BookingRepository) GetStalePending(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND booking_date < $2
		ORDER BY booking_date ASC`

	rows, err := r.db.QueryContext(ctx, query, models.BookingStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var booking models.Booking
		if err := scanBooking(rows, &booking); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}
