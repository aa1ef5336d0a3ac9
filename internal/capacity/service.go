// Package capacity is the only path through which an event's
// available_tickets changes. The service side owns the atomic conditional
// update; the client side issues the reserve/release RPCs over the bus.
package capacity

import (
	"context"
	"encoding/json"
	"errors"

	"ticketd/internal/apperr"
	"ticketd/internal/logger"
	"ticketd/internal/messaging"
	"ticketd/internal/metrics"
	"ticketd/internal/models"
)

// EventStore is the persistence contract the coordinator relies on. Both
// operations must be single indivisible updates: ReserveTickets decrements
// only if enough tickets remain, ReleaseTickets credits at most once per
// booking id.
type EventStore interface {
	ReserveTickets(ctx context.Context, eventID int64, quantity int) (remaining int, err error)
	ReleaseTickets(ctx context.Context, eventID int64, quantity int, bookingID *int64) (applied bool, err error)
}

type Service struct {
	store EventStore
	bus   *messaging.Client
}

func NewService(store EventStore, bus *messaging.Client) *Service {
	return &Service{store: store, bus: bus}
}

// Start subscribes the reserve/release handlers on the capacity queue group
// so replicas compete for each request.
func (s *Service) Start() error {
	if _, err := s.bus.Serve(models.SubjectCapacityReserve, models.QueueCapacity, s.handleReserve); err != nil {
		return err
	}
	if _, err := s.bus.Serve(models.SubjectCapacityRelease, models.QueueCapacity, s.handleRelease); err != nil {
		return err
	}
	return nil
}

func (s *Service) handleReserve(ctx context.Context, env *messaging.Envelope) (interface{}, error) {
	var req models.ReserveCapacityRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, apperr.Validation("malformed reserve request: %v", err)
	}
	reply, err := s.Reserve(ctx, &req)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Reserve performs the conditional decrement. On failure nothing changes
// and no ledger entry is written.
func (s *Service) Reserve(ctx context.Context, req *models.ReserveCapacityRequest) (*models.ReserveCapacityReply, error) {
	if req.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	remaining, err := s.store.ReserveTickets(ctx, req.EventID, req.Quantity)
	if err != nil {
		outcome := "error"
		if errors.Is(err, apperr.ErrInsufficientTickets) {
			outcome = "insufficient"
		} else if errors.Is(err, apperr.ErrEventNotFound) {
			outcome = "not_found"
		}
		metrics.CapacityOps.WithLabelValues(models.LedgerOpReserve, outcome).Inc()
		return nil, err
	}

	metrics.CapacityOps.WithLabelValues(models.LedgerOpReserve, "ok").Inc()
	logger.WithContext(ctx).Info("Reserved capacity",
		"event_id", req.EventID,
		"quantity", req.Quantity,
		"remaining", remaining)

	return &models.ReserveCapacityReply{RPCStatus: models.OK(), Remaining: remaining}, nil
}

func (s *Service) handleRelease(ctx context.Context, env *messaging.Envelope) (interface{}, error) {
	var req models.ReleaseCapacityRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, apperr.Validation("malformed release request: %v", err)
	}
	reply, err := s.Release(ctx, &req)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Release credits quantity back. A repeated release for the same booking id
// is absorbed by the ledger constraint and reported as success so retries
// after an unknown-outcome timeout are safe.
func (s *Service) Release(ctx context.Context, req *models.ReleaseCapacityRequest) (*models.ReleaseCapacityReply, error) {
	if req.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	applied, err := s.store.ReleaseTickets(ctx, req.EventID, req.Quantity, req.BookingID)
	if err != nil {
		outcome := "error"
		if errors.Is(err, apperr.ErrEventNotFound) {
			outcome = "not_found"
		}
		metrics.CapacityOps.WithLabelValues(models.LedgerOpRelease, outcome).Inc()
		return nil, err
	}

	if !applied {
		metrics.CapacityOps.WithLabelValues(models.LedgerOpRelease, "duplicate").Inc()
		logger.WithContext(ctx).Warn("Duplicate capacity release skipped",
			"event_id", req.EventID,
			"booking_id", req.BookingID)
	} else {
		metrics.CapacityOps.WithLabelValues(models.LedgerOpRelease, "ok").Inc()
		logger.WithContext(ctx).Info("Released capacity",
			"event_id", req.EventID,
			"quantity", req.Quantity,
			"booking_id", req.BookingID)
	}

	return &models.ReleaseCapacityReply{RPCStatus: models.OK()}, nil
}
