package consumers

import (
	"context"
	"log/slog"

	"ticketd/internal/messaging"
	"ticketd/internal/models"
	"ticketd/internal/repository"
	"ticketd/internal/search"
)

// queueSearchSync groups the availability-sync consumers so each notification
// is applied to the search index exactly once across all coordinator
// instances.
const queueSearchSync = "search-sync"

// Service keeps the Elasticsearch read model in step with booking
// notifications.
type Service struct {
	bus      *messaging.Client
	handlers *Handlers
}

func NewService(bus *messaging.Client, repos *repository.Repositories, searchClient *search.Client) *Service {
	return &Service{
		bus:      bus,
		handlers: NewHandlers(repos, searchClient),
	}
}

func (s *Service) Start() error {
	slog.Info("Starting notification consumers...")

	if _, err := s.bus.QueueSubscribe(models.EventBookingCreated, queueSearchSync, s.handlers.HandleBookingCreated); err != nil {
		return err
	}
	if _, err := s.bus.QueueSubscribe(models.EventBookingCancelled, queueSearchSync, s.handlers.HandleBookingCancelled); err != nil {
		return err
	}
	if _, err := s.bus.QueueSubscribe(models.EventPaymentConfirmed, queueSearchSync, s.handlers.HandlePaymentConfirmed); err != nil {
		return err
	}

	slog.Info("All consumers started")
	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down notification consumers...")
	return s.bus.Close()
}
