// Package booking is the lifecycle orchestrator: it composes the rate
// limiter, the distributed lock, the capacity coordinator and the booking
// store so creation, cancellation, confirmation and expiry keep the
// at-most-available-capacity guarantee with compensating release.
package booking

import (
	"context"
	"errors"
	"time"

	"ticketd/internal/apperr"
	"ticketd/internal/keys"
	"ticketd/internal/logger"
	"ticketd/internal/metrics"
	"ticketd/internal/models"
)

// Locker provides event- and booking-scoped mutual exclusion. The lock is
// advisory: it reduces contention on the hot path, while the coordinator's
// conditional update carries the actual capacity invariant.
type Locker interface {
	WithLock(ctx context.Context, scope string, ttl time.Duration, maxRetries int, fn func(ctx context.Context) error) error
}

// RateLimiter is the sliding-window call budget.
type RateLimiter interface {
	Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error)
}

// CapacityClient issues reserve/release RPCs to the owning service.
type CapacityClient interface {
	Reserve(ctx context.Context, eventID int64, quantity int) (int, error)
	Release(ctx context.Context, eventID int64, quantity int, bookingID *int64) error
}

// Publisher emits fire-and-forget notifications.
type Publisher interface {
	Publish(subject string, payload interface{}) error
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByUserID(ctx context.Context, userID int64) ([]models.Booking, error)
	HasActiveBooking(ctx context.Context, userID, eventID int64) (bool, error)
	MarkCancelled(ctx context.Context, id int64, reason, paymentStatus string, cancelledAt time.Time) error
	MarkConfirmed(ctx context.Context, id int64, transactionID string) error
	GetStalePending(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
}

type EventStore interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type Config struct {
	LockTTL     time.Duration
	LockRetries int

	CreateRateMax    int
	CreateRateWindow time.Duration
	CancelRateMax    int
	CancelRateWindow time.Duration

	// MinCancelNotice is how far ahead of the event start a cancellation is
	// still accepted.
	MinCancelNotice time.Duration

	StaleAfter        time.Duration
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockTTL:           10 * time.Second,
		LockRetries:       3,
		CreateRateMax:     5,
		CreateRateWindow:  10 * time.Second,
		CancelRateMax:     3,
		CancelRateWindow:  30 * time.Second,
		MinCancelNotice:   24 * time.Hour,
		StaleAfter:        time.Hour,
		SweepInterval:     time.Minute,
		ReconcileInterval: 5 * time.Minute,
		ReconcileGrace:    10 * time.Minute,
	}
}

// amountToleranceCents absorbs client-side rounding when checking
// totalAmount against price * quantity.
const amountToleranceCents = 1

const expiryReason = "timeout"

type Service struct {
	cfg      Config
	locks    Locker
	limiter  RateLimiter
	capacity CapacityClient
	bus      Publisher
	bookings BookingStore
	events   EventStore
	users    UserStore
}

func NewService(cfg Config, locks Locker, limiter RateLimiter, capacity CapacityClient, bus Publisher, bookings BookingStore, events EventStore, users UserStore) *Service {
	return &Service{
		cfg:      cfg,
		locks:    locks,
		limiter:  limiter,
		capacity: capacity,
		bus:      bus,
		bookings: bookings,
		events:   events,
		users:    users,
	}
}

// Create validates the request under the event lock, reserves capacity via
// RPC and persists the booking in pending state. If persistence fails after
// a successful reserve, the hold is orphaned and later reclaimed by the
// ledger reconciliation sweep.
func (s *Service) Create(ctx context.Context, req *models.CreateBookingRequest) (*models.Booking, error) {
	allowed, err := s.limiter.Allow(ctx, keys.RateBook(req.UserID), s.cfg.CreateRateMax, s.cfg.CreateRateWindow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		metrics.RateLimitDenied.WithLabelValues("book").Inc()
		return nil, apperr.ErrRateLimited
	}

	var booking *models.Booking
	err = s.locks.WithLock(ctx, keys.Event(req.EventID), s.cfg.LockTTL, s.cfg.LockRetries, func(ctx context.Context) error {
		event, err := s.events.GetByID(ctx, req.EventID)
		if err != nil {
			return err
		}
		if event == nil {
			return apperr.ErrEventNotFound
		}
		if !event.IsActive {
			return apperr.Validation("event is not active")
		}
		if !event.StartsAt.After(time.Now()) {
			return apperr.Validation("event has already started")
		}
		if req.TicketQuantity < 1 {
			return apperr.Validation("ticket quantity must be at least 1")
		}
		if req.TicketQuantity > event.AvailableTickets {
			return apperr.ErrInsufficientTickets
		}
		expected := event.PriceCents * int64(req.TicketQuantity)
		if diff := req.TotalAmountCents - expected; diff < -amountToleranceCents || diff > amountToleranceCents {
			return apperr.Validation("total amount %d does not match price %d x %d tickets",
				req.TotalAmountCents, event.PriceCents, req.TicketQuantity)
		}

		user, err := s.users.GetByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if user == nil || !user.IsActive {
			return apperr.Validation("user is not active")
		}

		active, err := s.bookings.HasActiveBooking(ctx, req.UserID, req.EventID)
		if err != nil {
			return err
		}
		if active {
			return apperr.Validation("user already has an active booking for this event")
		}

		if _, err := s.capacity.Reserve(ctx, req.EventID, req.TicketQuantity); err != nil {
			return err
		}

		booking = &models.Booking{
			EventID:          req.EventID,
			UserID:           req.UserID,
			TicketQuantity:   req.TicketQuantity,
			TotalAmountCents: req.TotalAmountCents,
			Status:           models.BookingStatusPending,
			PaymentStatus:    models.PaymentStatusPending,
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			// Capacity is already held with no booking row to show for it.
			// The reconciliation sweep finds and releases the orphan.
			logger.WithContext(ctx).Error("Booking persist failed after capacity reserve",
				"event_id", req.EventID,
				"user_id", req.UserID,
				"quantity", req.TicketQuantity,
				"error", err)
			return err
		}

		s.publish(ctx, models.EventBookingCreated, models.BookingCreatedEvent{
			BookingID:        booking.ID,
			EventID:          booking.EventID,
			UserID:           booking.UserID,
			TicketQuantity:   booking.TicketQuantity,
			TotalAmountCents: booking.TotalAmountCents,
			Timestamp:        time.Now().UTC(),
		})

		metrics.BookingsCreated.Inc()
		return nil
	})

	if err != nil {
		if errors.Is(err, apperr.ErrLockNotAcquired) {
			metrics.LockFailures.Inc()
		}
		return nil, err
	}
	return booking, nil
}

// Cancel releases the booking's capacity (best-effort) and moves it to the
// terminal cancelled state under the booking lock.
func (s *Service) Cancel(ctx context.Context, req *models.CancelBookingRequest) (*models.Booking, error) {
	allowed, err := s.limiter.Allow(ctx, keys.RateCancel(req.UserID), s.cfg.CancelRateMax, s.cfg.CancelRateWindow)
	if err != nil {
		return nil, err
	}
	if !allowed {
		metrics.RateLimitDenied.WithLabelValues("cancel").Inc()
		return nil, apperr.ErrRateLimited
	}

	reason := req.Reason
	if reason == "" {
		reason = "cancelled by user"
	}

	var cancelled *models.Booking
	err = s.locks.WithLock(ctx, keys.Booking(req.BookingID), s.cfg.LockTTL, s.cfg.LockRetries, func(ctx context.Context) error {
		booking, err := s.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperr.ErrBookingNotFound
		}
		if booking.UserID != req.UserID {
			return apperr.ErrForbidden
		}
		if booking.Status == models.BookingStatusCancelled {
			return apperr.Validation("booking is already cancelled")
		}

		event, err := s.events.GetByID(ctx, booking.EventID)
		if err != nil {
			return err
		}
		if event != nil && time.Until(event.StartsAt) < s.cfg.MinCancelNotice {
			return apperr.Validation("bookings can only be cancelled at least %s before the event", s.cfg.MinCancelNotice)
		}

		cancelled, err = s.cancelLocked(ctx, booking, reason)
		return err
	})

	if err != nil {
		if errors.Is(err, apperr.ErrLockNotAcquired) {
			metrics.LockFailures.Inc()
		}
		return nil, err
	}
	return cancelled, nil
}

// cancelLocked performs the cancellation steps. The caller must hold the
// booking lock and have verified the booking is not already cancelled.
func (s *Service) cancelLocked(ctx context.Context, booking *models.Booking, reason string) (*models.Booking, error) {
	// Best-effort compensation: a failed release is logged, not fatal; the
	// reconciliation sweep backstops it.
	if err := s.capacity.Release(ctx, booking.EventID, booking.TicketQuantity, &booking.ID); err != nil {
		logger.WithContext(ctx).Error("Failed to release capacity during cancellation",
			"booking_id", booking.ID,
			"event_id", booking.EventID,
			"quantity", booking.TicketQuantity,
			"error", err)
	}

	paymentStatus := models.PaymentStatusFailed
	if booking.PaymentStatus == models.PaymentStatusPaid {
		paymentStatus = models.PaymentStatusRefunded
	}

	now := time.Now().UTC()
	if err := s.bookings.MarkCancelled(ctx, booking.ID, reason, paymentStatus, now); err != nil {
		return nil, err
	}

	booking.Status = models.BookingStatusCancelled
	booking.PaymentStatus = paymentStatus
	booking.CancellationReason = &reason
	booking.CancelledAt = &now

	s.publish(ctx, models.EventBookingCancelled, models.BookingCancelledEvent{
		BookingID:      booking.ID,
		EventID:        booking.EventID,
		UserID:         booking.UserID,
		TicketQuantity: booking.TicketQuantity,
		Reason:         reason,
		Timestamp:      now,
	})

	reasonClass := "user"
	if reason == expiryReason {
		reasonClass = "expired"
	}
	metrics.BookingsCancelled.WithLabelValues(reasonClass).Inc()

	return booking, nil
}

// ConfirmPayment moves a pending booking to confirmed/paid. It takes the
// same booking lock as Cancel so the two cannot interleave.
func (s *Service) ConfirmPayment(ctx context.Context, req *models.ConfirmPaymentRequest) (*models.Booking, error) {
	var confirmed *models.Booking
	err := s.locks.WithLock(ctx, keys.Booking(req.BookingID), s.cfg.LockTTL, s.cfg.LockRetries, func(ctx context.Context) error {
		booking, err := s.bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperr.ErrBookingNotFound
		}
		if booking.Status == models.BookingStatusCancelled {
			return apperr.Validation("cannot confirm payment on a cancelled booking")
		}
		if booking.Status == models.BookingStatusConfirmed {
			// Repeated confirmation is a no-op.
			confirmed = booking
			return nil
		}

		if err := s.bookings.MarkConfirmed(ctx, booking.ID, req.PaymentTransactionID); err != nil {
			return err
		}

		booking.Status = models.BookingStatusConfirmed
		booking.PaymentStatus = models.PaymentStatusPaid
		booking.PaymentTransactionID = &req.PaymentTransactionID
		confirmed = booking

		s.publish(ctx, models.EventPaymentConfirmed, models.PaymentConfirmedEvent{
			BookingID:     booking.ID,
			EventID:       booking.EventID,
			UserID:        booking.UserID,
			TransactionID: req.PaymentTransactionID,
			Timestamp:     time.Now().UTC(),
		})

		metrics.BookingsConfirmed.Inc()
		return nil
	})

	if err != nil {
		if errors.Is(err, apperr.ErrLockNotAcquired) {
			metrics.LockFailures.Inc()
		}
		return nil, err
	}
	return confirmed, nil
}

// Validate reports whether a booking exists for the event and is not
// cancelled.
func (s *Service) Validate(ctx context.Context, req *models.ValidateBookingRequest) (bool, *models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return false, nil, err
	}
	if booking == nil {
		return false, nil, nil
	}

	valid := booking.EventID == req.EventID && booking.Status != models.BookingStatusCancelled
	return valid, booking, nil
}

// ListForUser returns the user's bookings, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	return s.bookings.GetByUserID(ctx, userID)
}

// ExpireBooking cancels one stale pending booking under its lock with zero
// acquire retries: when sweepers race across replicas, losing the lock
// means another instance is handling it and we skip silently.
func (s *Service) ExpireBooking(ctx context.Context, bookingID int64) error {
	return s.locks.WithLock(ctx, keys.Booking(bookingID), s.cfg.LockTTL, 0, func(ctx context.Context) error {
		booking, err := s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil || booking.Status != models.BookingStatusPending {
			// Already handled by someone else.
			return nil
		}
		_, err = s.cancelLocked(ctx, booking, expiryReason)
		return err
	})
}

// publish sends a notification best-effort: failures are logged, never
// propagated.
func (s *Service) publish(ctx context.Context, subject string, payload interface{}) {
	if err := s.bus.Publish(subject, payload); err != nil {
		logger.WithContext(ctx).Error("Failed to publish notification",
			"subject", subject,
			"error", err)
	}
}
