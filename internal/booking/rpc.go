package booking

import (
	"context"
	"encoding/json"

	"ticketd/internal/apperr"
	"ticketd/internal/messaging"
	"ticketd/internal/models"
)

// RPCServer exposes the orchestrator's operations on the bus for other
// services. Handlers stay thin: decode, delegate, wrap.
type RPCServer struct {
	svc *Service
	bus *messaging.Client
}

func NewRPCServer(svc *Service, bus *messaging.Client) *RPCServer {
	return &RPCServer{svc: svc, bus: bus}
}

func (r *RPCServer) Start() error {
	subjects := map[string]messaging.RPCHandler{
		models.SubjectBookingCreate:         r.handleCreate,
		models.SubjectBookingCancel:         r.handleCancel,
		models.SubjectBookingConfirmPayment: r.handleConfirmPayment,
		models.SubjectBookingValidate:       r.handleValidate,
	}
	for subject, handler := range subjects {
		if _, err := r.bus.Serve(subject, models.QueueBooking, handler); err != nil {
			return err
		}
	}
	return nil
}

func (r *RPCServer) handleCreate(ctx context.Context, env *messaging.Envelope) (interface{}, error) {
	var req models.CreateBookingRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, apperr.Validation("malformed create request: %v", err)
	}
	booking, err := r.svc.Create(ctx, &req)
	if err != nil {
		return nil, err
	}
	return &models.BookingReply{RPCStatus: models.OK(), Booking: booking}, nil
}

func (r *RPCServer) handleCancel(ctx context.Context, env *messaging.Envelope) (interface{}, error) {
	var req models.CancelBookingRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, apperr.Validation("malformed cancel request: %v", err)
	}
	booking, err := r.svc.Cancel(ctx, &req)
	if err != nil {
		return nil, err
	}
	return &models.BookingReply{RPCStatus: models.OK(), Booking: booking}, nil
}

func (r *RPCServer) handleConfirmPayment(ctx context.Context, env *messaging.Envelope) (interface{}, error) {
	var req models.ConfirmPaymentRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, apperr.Validation("malformed confirm request: %v", err)
	}
	booking, err := r.svc.ConfirmPayment(ctx, &req)
	if err != nil {
		return nil, err
	}
	return &models.BookingReply{RPCStatus: models.OK(), Booking: booking}, nil
}

func (r *RPCServer) handleValidate(ctx context.Context, env *messaging.Envelope) (interface{}, error) {
	var req models.ValidateBookingRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return nil, apperr.Validation("malformed validate request: %v", err)
	}
	valid, booking, err := r.svc.Validate(ctx, &req)
	if err != nil {
		return nil, err
	}
	return &models.ValidateBookingReply{RPCStatus: models.OK(), Valid: valid, Booking: booking}, nil
}
