package repository

import (
	"context"
	"time"

	"ticketd/internal/database"
	"ticketd/internal/models"
)

// LedgerRepository reads the append-only capacity ledger. Writes happen
// inside EventRepository's reserve/release transactions; nothing else may
// touch the table.
type LedgerRepository struct {
	db *database.DB
}

func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListByEvent(ctx context.Context, eventID int64, limit int) ([]models.CapacityLedgerEntry, error) {
	query := `
		SELECT id, event_id, operation, quantity, booking_id, recorded_at
		FROM capacity_ledger
		WHERE event_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.CapacityLedgerEntry
	for rows.Next() {
		var entry models.CapacityLedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.Operation,
			&entry.Quantity,
			&entry.BookingID,
			&entry.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// CapacityDrift cross-checks the ledger against live bookings per event:
// reserved minus released minus what non-cancelled bookings account for.
// A positive drift is an orphaned hold (capacity reserved, booking never
// persisted). Candidate events come from an ungraced aggregate, then the
// grace rule is applied per entry by driftQuantity.
func (r *LedgerRepository) CapacityDrift(ctx context.Context, grace time.Duration) ([]models.CapacityDrift, error) {
	cutoff := time.Now().Add(-grace)

	candidates, err := r.driftCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []models.CapacityDrift
	for _, c := range candidates {
		entries, err := r.entriesForEvent(ctx, c.eventID)
		if err != nil {
			return nil, err
		}
		if q := driftQuantity(entries, c.live, cutoff); q > 0 {
			drifts = append(drifts, models.CapacityDrift{EventID: c.eventID, Quantity: q})
		}
	}

	return drifts, nil
}

type driftCandidate struct {
	eventID int64
	live    int
}

// driftCandidates returns events whose ledger balance exceeds what live
// bookings hold, ignoring grace. Grace only shrinks the reserved side, so
// every graced drift appears here too.
func (r *LedgerRepository) driftCandidates(ctx context.Context) ([]driftCandidate, error) {
	query := `
		SELECT l.event_id,
		       COALESCE((
		           SELECT SUM(b.ticket_quantity) FROM bookings b
		           WHERE b.event_id = l.event_id AND b.status <> 'cancelled'
		         ), 0) AS live
		FROM capacity_ledger l
		GROUP BY l.event_id
		HAVING COALESCE(SUM(CASE WHEN l.operation = 'reserve' THEN l.quantity ELSE -l.quantity END), 0)
		         - COALESCE((
		             SELECT SUM(b.ticket_quantity) FROM bookings b
		             WHERE b.event_id = l.event_id AND b.status <> 'cancelled'
		           ), 0) > 0`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []driftCandidate
	for rows.Next() {
		var c driftCandidate
		if err := rows.Scan(&c.eventID, &c.live); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

func (r *LedgerRepository) entriesForEvent(ctx context.Context, eventID int64) ([]models.CapacityLedgerEntry, error) {
	query := `
		SELECT operation, quantity, recorded_at
		FROM capacity_ledger
		WHERE event_id = $1`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.CapacityLedgerEntry
	for rows.Next() {
		var entry models.CapacityLedgerEntry
		if err := rows.Scan(&entry.Operation, &entry.Quantity, &entry.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// driftQuantity balances one event's ledger against its live bookings.
// Reserves younger than the cutoff are skipped as possibly in-flight
// creates. Releases count regardless of age, so a fresh cancellation
// stays paired with its older reserve row.
func driftQuantity(entries []models.CapacityLedgerEntry, live int, cutoff time.Time) int {
	held := 0
	for _, entry := range entries {
		switch {
		case entry.Operation == models.LedgerOpRelease:
			held -= entry.Quantity
		case entry.RecordedAt.Before(cutoff):
			held += entry.Quantity
		}
	}
	return held - live
}
