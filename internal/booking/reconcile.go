package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticketd/internal/apperr"
	"ticketd/internal/keys"
	"ticketd/internal/metrics"
	"ticketd/internal/models"
)

// LedgerStore surfaces capacity held in the ledger that no live booking
// accounts for.
type LedgerStore interface {
	CapacityDrift(ctx context.Context, grace time.Duration) ([]models.CapacityDrift, error)
}

// Reconciler closes the gap left by the non-transactional create saga: a
// crash between capacity reserve and booking persist leaves an orphaned
// hold. The reconciler cross-checks the ledger against live bookings and
// releases the difference. Releases go through the coordinator so they are
// audited like any other.
type Reconciler struct {
	cfg      Config
	ledger   LedgerStore
	capacity CapacityClient
	locks    Locker
	ticker   *time.Ticker
	done     chan struct{}
}

func NewReconciler(cfg Config, ledger LedgerStore, capacity CapacityClient, locks Locker) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		ledger:   ledger,
		capacity: capacity,
		locks:    locks,
		done:     make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("Starting capacity reconciliation sweep",
		"interval", r.cfg.ReconcileInterval,
		"grace", r.cfg.ReconcileGrace)

	r.ticker = time.NewTicker(r.cfg.ReconcileInterval)

	go func() {
		for {
			select {
			case <-r.ticker.C:
				r.reconcile(ctx)
			case <-r.done:
				slog.Info("Capacity reconciliation sweep stopped")
				return
			}
		}
	}()
}

func (r *Reconciler) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.done)
}

// reconcile runs one sweep under a cluster-wide lock with zero acquire
// retries. Drift releases carry no booking id, so without the lock two
// replicas computing the same drift would each credit it.
func (r *Reconciler) reconcile(ctx context.Context) {
	err := r.locks.WithLock(ctx, keys.Reconcile(), r.cfg.LockTTL, 0, r.sweepDrift)
	if errors.Is(err, apperr.ErrLockNotAcquired) {
		// Another replica is sweeping.
		return
	}
	if err != nil {
		slog.Error("Failed to compute capacity drift", "error", err)
	}
}

func (r *Reconciler) sweepDrift(ctx context.Context) error {
	drifts, err := r.ledger.CapacityDrift(ctx, r.cfg.ReconcileGrace)
	if err != nil {
		return err
	}

	for _, drift := range drifts {
		slog.Warn("Releasing orphaned capacity hold",
			"event_id", drift.EventID,
			"quantity", drift.Quantity)

		if err := r.capacity.Release(ctx, drift.EventID, drift.Quantity, nil); err != nil {
			slog.Error("Failed to release orphaned capacity",
				"event_id", drift.EventID,
				"quantity", drift.Quantity,
				"error", err)
			continue
		}
		metrics.OrphanedCapacityReleased.Add(float64(drift.Quantity))
	}
	return nil
}
