package consumers

import (
	"context"
	"encoding/json"
	"log/slog"

	"ticketd/internal/messaging"
	"ticketd/internal/models"
	"ticketd/internal/repository"
	"ticketd/internal/search"
)

type Handlers struct {
	repos  *repository.Repositories
	search *search.Client
}

func NewHandlers(repos *repository.Repositories, searchClient *search.Client) *Handlers {
	return &Handlers{
		repos:  repos,
		search: searchClient,
	}
}

// HandleBookingCreated decrements the indexed availability for the event.
func (h *Handlers) HandleBookingCreated(ctx context.Context, env *messaging.Envelope) {
	var event models.BookingCreatedEvent
	if err := json.Unmarshal(env.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking created event", "error", err)
		return
	}

	slog.Info("Processing booking created event",
		"booking_id", event.BookingID, "event_id", event.EventID,
		"quantity", event.TicketQuantity)

	if err := h.search.UpdateAvailability(ctx, event.EventID, -event.TicketQuantity); err != nil {
		slog.Error("Failed to sync availability to search index",
			"event_id", event.EventID, "error", err)
		// Fall back to a full reindex from the source of truth.
		h.reindex(ctx, event.EventID)
	}
}

// HandleBookingCancelled returns the cancelled tickets to the indexed
// availability. Timeout cancellations from the sweeper arrive here too.
func (h *Handlers) HandleBookingCancelled(ctx context.Context, env *messaging.Envelope) {
	var event models.BookingCancelledEvent
	if err := json.Unmarshal(env.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking cancelled event", "error", err)
		return
	}

	slog.Info("Processing booking cancelled event",
		"booking_id", event.BookingID, "event_id", event.EventID,
		"reason", event.Reason)

	if err := h.search.UpdateAvailability(ctx, event.EventID, event.TicketQuantity); err != nil {
		slog.Error("Failed to sync availability to search index",
			"event_id", event.EventID, "error", err)
		h.reindex(ctx, event.EventID)
	}
}

// HandlePaymentConfirmed only records the confirmation; availability does not
// change when a pending booking becomes paid.
func (h *Handlers) HandlePaymentConfirmed(ctx context.Context, env *messaging.Envelope) {
	var event models.PaymentConfirmedEvent
	if err := json.Unmarshal(env.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment confirmed event", "error", err)
		return
	}

	slog.Info("Processing payment confirmed event",
		"booking_id", event.BookingID, "event_id", event.EventID,
		"transaction_id", event.TransactionID)
}

func (h *Handlers) reindex(ctx context.Context, eventID int64) {
	event, err := h.repos.Events.GetByID(ctx, eventID)
	if err != nil || event == nil {
		slog.Error("Failed to load event for reindex", "event_id", eventID, "error", err)
		return
	}
	if err := h.search.IndexEvent(ctx, event); err != nil {
		slog.Error("Failed to reindex event", "event_id", eventID, "error", err)
	}
}
