package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ticketd/internal/apperr"
)

// Sweeper periodically cancels pending bookings that outlived the staleness
// threshold. Each cancellation runs under the booking lock, so when several
// replicas sweep concurrently only one of them cancels a given booking; the
// others lose the lock and skip it.
type Sweeper struct {
	svc    *Service
	ticker *time.Ticker
	done   chan struct{}
}

func NewSweeper(svc *Service) *Sweeper {
	return &Sweeper{
		svc:  svc,
		done: make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("Starting booking expiry sweeper",
		"interval", s.svc.cfg.SweepInterval,
		"stale_after", s.svc.cfg.StaleAfter)

	s.ticker = time.NewTicker(s.svc.cfg.SweepInterval)

	go s.sweep(ctx)

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.sweep(ctx)
			case <-s.done:
				slog.Info("Booking expiry sweeper stopped")
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.svc.cfg.StaleAfter)

	stale, err := s.svc.bookings.GetStalePending(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to load stale pending bookings", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	slog.Info("Found stale pending bookings", "count", len(stale))

	for _, booking := range stale {
		err := s.svc.ExpireBooking(ctx, booking.ID)
		switch {
		case err == nil:
			slog.Info("Expired stale booking",
				"booking_id", booking.ID,
				"event_id", booking.EventID,
				"age", time.Since(booking.BookingDate).String())
		case errors.Is(err, apperr.ErrLockNotAcquired):
			// Another sweeper instance holds it. Expected contention.
			slog.Debug("Skipped booking locked by another sweeper", "booking_id", booking.ID)
		default:
			slog.Error("Failed to expire booking",
				"booking_id", booking.ID,
				"error", err)
		}
	}
}
