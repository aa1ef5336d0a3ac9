package capacity

import (
	"context"
	"time"

	"ticketd/internal/apperr"
	"ticketd/internal/models"
)

// Requester issues a request/reply RPC over the bus.
type Requester interface {
	Request(ctx context.Context, subject string, payload, reply interface{}) error
}

type ClientConfig struct {
	RequestTimeout time.Duration
}

// Client is the caller-side view of the coordinator.
type Client struct {
	bus     Requester
	timeout time.Duration
}

func NewClient(bus Requester, cfg ClientConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{bus: bus, timeout: timeout}
}

// Reserve asks the owning service to hold quantity tickets. Returns the
// remaining availability on success.
func (c *Client) Reserve(ctx context.Context, eventID int64, quantity int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := models.ReserveCapacityRequest{EventID: eventID, Quantity: quantity}
	var reply models.ReserveCapacityReply
	if err := c.bus.Request(ctx, models.SubjectCapacityReserve, req, &reply); err != nil {
		return 0, err
	}
	if !reply.Success {
		return 0, apperr.FromWire(reply.Code, reply.Error)
	}
	return reply.Remaining, nil
}

// Release credits quantity tickets back. bookingID keys the release so the
// coordinator can absorb duplicates; pass nil only for reconciliation
// releases that have no booking to key on.
func (c *Client) Release(ctx context.Context, eventID int64, quantity int, bookingID *int64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := models.ReleaseCapacityRequest{EventID: eventID, Quantity: quantity, BookingID: bookingID}
	var reply models.ReleaseCapacityReply
	if err := c.bus.Request(ctx, models.SubjectCapacityRelease, req, &reply); err != nil {
		return err
	}
	if !reply.Success {
		return apperr.FromWire(reply.Code, reply.Error)
	}
	return nil
}
