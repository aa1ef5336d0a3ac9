package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ticketd/internal/apperr"
	"ticketd/internal/database"
	"ticketd/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (title, description, capacity, available_tickets, price_cents, is_active, starts_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		event.Title,
		event.Description,
		event.Capacity,
		event.AvailableTickets,
		event.PriceCents,
		event.IsActive,
		event.StartsAt,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, title, description, capacity, available_tickets, price_cents,
		       is_active, starts_at, created_at, updated_at
		FROM events
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Capacity,
		&event.AvailableTickets,
		&event.PriceCents,
		&event.IsActive,
		&event.StartsAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return event, err
}

func (r *EventRepository) List(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	query := `
		SELECT id, title, description, capacity, available_tickets, price_cents,
		       is_active, starts_at, created_at, updated_at
		FROM events
		ORDER BY starts_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Description,
			&event.Capacity,
			&event.AvailableTickets,
			&event.PriceCents,
			&event.IsActive,
			&event.StartsAt,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// ReserveTickets decrements available_tickets by quantity only if enough
// remain, and appends the reserve ledger entry in the same transaction. The
// conditional UPDATE is a single document operation, so the check-then-act
// is race-free regardless of any advisory locking by the caller.
func (r *EventRepository) ReserveTickets(ctx context.Context, eventID int64, quantity int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var remaining int
	updateQuery := `
		UPDATE events
		SET available_tickets = available_tickets - $1, updated_at = NOW()
		WHERE id = $2 AND available_tickets >= $1
		RETURNING available_tickets`

	err = tx.QueryRowContext(ctx, updateQuery, quantity, eventID).Scan(&remaining)
	if err == sql.ErrNoRows {
		// Distinguish a missing event from an exhausted one.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, apperr.ErrEventNotFound
		}
		return 0, apperr.ErrInsufficientTickets
	}
	if err != nil {
		return 0, err
	}

	ledgerQuery := `
		INSERT INTO capacity_ledger (event_id, operation, quantity)
		VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, ledgerQuery, eventID, models.LedgerOpReserve, quantity); err != nil {
		return 0, fmt.Errorf("failed to append reserve ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// ReleaseTickets credits quantity back to available_tickets and appends the
// release ledger entry in one transaction. When bookingID is set, the
// ledger's unique release-per-booking index makes the whole release
// at-most-once: a duplicate insert conflicts, nothing is credited, and the
// call reports applied=false with no error.
func (r *EventRepository) ReleaseTickets(ctx context.Context, eventID int64, quantity int, bookingID *int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	ledgerQuery := `
		INSERT INTO capacity_ledger (event_id, operation, quantity, booking_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`
	res, err := tx.ExecContext(ctx, ledgerQuery, eventID, models.LedgerOpRelease, quantity, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to append release ledger entry: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		// Already released for this booking.
		return false, nil
	}

	updateQuery := `
		UPDATE events
		SET available_tickets = LEAST(capacity, available_tickets + $1), updated_at = NOW()
		WHERE id = $2`
	res, err = tx.ExecContext(ctx, updateQuery, quantity, eventID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, apperr.ErrEventNotFound
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateCapacity changes the capacity ceiling, keeping available_tickets in
// step. The floor is the number of tickets already sold.
func (r *EventRepository) UpdateCapacity(ctx context.Context, eventID int64, capacity int) error {
	query := `
		UPDATE events
		SET available_tickets = available_tickets + ($1 - capacity),
		    capacity = $1,
		    updated_at = NOW()
		WHERE id = $2 AND $1 >= capacity - available_tickets`

	res, err := r.db.ExecContext(ctx, query, capacity, eventID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		event, err := r.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		if event == nil {
			return apperr.ErrEventNotFound
		}
		return apperr.Validation("capacity %d is below %d tickets already sold",
			capacity, event.Capacity-event.AvailableTickets)
	}
	return nil
}
