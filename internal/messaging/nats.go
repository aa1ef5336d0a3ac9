package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"ticketd/internal/apperr"
)

type Config struct {
	URL             string
	Name            string
	ConnectAttempts int
	ConnectBackoff  time.Duration
	ReconnectWait   time.Duration
	MaxReconnects   int
}

// Client wraps a NATS connection for both fire-and-forget notifications and
// timed request/reply RPC. Subscriptions survive reconnects; the server-side
// resubscription is handled by the NATS client itself.
type Client struct {
	conn *nats.Conn
}

// Connect establishes a connection, retrying with a fixed backoff up to the
// configured attempt count before surfacing a fatal error.
func Connect(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
	}

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var conn *nats.Conn
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = nats.Connect(cfg.URL, opts...)
		if err == nil {
			slog.Info("Connected to NATS", "url", cfg.URL, "client", cfg.Name)
			return &Client{conn: conn}, nil
		}
		slog.Warn("NATS connect failed", "attempt", attempt, "error", err)
		if attempt < attempts {
			time.Sleep(cfg.ConnectBackoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", attempts, err)
}

func (c *Client) ready() error {
	if c == nil || c.conn == nil || c.conn.IsClosed() {
		return apperr.ErrNotConnected
	}
	return nil
}

// Publish delivers a notification without waiting for processing. The
// payload is wrapped in an envelope carrying message id and timestamp.
func (c *Client) Publish(subject string, payload interface{}) error {
	if err := c.ready(); err != nil {
		return err
	}

	env, err := newEnvelope("", payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", subject, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope for %s: %w", subject, err)
	}

	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// Request sends an enveloped request and awaits exactly one correlated reply
// within the context deadline, decoding it into reply. A late reply after
// the deadline is discarded by the bus. Timeouts surface as
// apperr.ErrTimeout.
func (c *Client) Request(ctx context.Context, subject string, payload, reply interface{}) error {
	if err := c.ready(); err != nil {
		return err
	}

	env, err := newEnvelope(uuid4(), payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", subject, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope for %s: %w", subject, err)
	}

	msg, err := c.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", apperr.ErrTimeout, subject)
		}
		return fmt.Errorf("request to %s failed: %w", subject, err)
	}

	var replyEnv Envelope
	if err := json.Unmarshal(msg.Data, &replyEnv); err != nil {
		return fmt.Errorf("failed to decode reply envelope from %s: %w", subject, err)
	}
	if err := json.Unmarshal(replyEnv.Data, reply); err != nil {
		return fmt.Errorf("failed to decode reply from %s: %w", subject, err)
	}
	return nil
}

// Handler consumes a decoded notification envelope.
type Handler func(ctx context.Context, env *Envelope)

// Subscribe delivers decoded messages to handler one at a time in receipt
// order. Handler panics are caught and logged and do not terminate the
// subscription.
func (c *Client) Subscribe(subject string, handler Handler) (*nats.Subscription, error) {
	return c.subscribe(subject, "", handler)
}

// QueueSubscribe is Subscribe with a queue group: the bus load-balances
// deliveries for the subject across all subscribers sharing the queue name.
func (c *Client) QueueSubscribe(subject, queue string, handler Handler) (*nats.Subscription, error) {
	return c.subscribe(subject, queue, handler)
}

func (c *Client) subscribe(subject, queue string, handler Handler) (*nats.Subscription, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	cb := func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in subscription handler", "subject", subject, "panic", r)
			}
		}()

		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Error("Failed to decode message envelope", "subject", subject, "error", err)
			return
		}
		handler(context.Background(), &env)
	}

	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = c.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = c.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	slog.Info("Subscribed to subject", "subject", subject, "queue", queue)
	return sub, nil
}

// RPCHandler serves one request. It returns the typed reply or an error; the
// Serve adapter is the only place an error becomes a wire reply.
type RPCHandler func(ctx context.Context, env *Envelope) (interface{}, error)

// Serve subscribes an RPC handler on a queue group and replies to every
// request, echoing the request's correlation id.
func (c *Client) Serve(subject, queue string, handler RPCHandler) (*nats.Subscription, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	cb := func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Panic in RPC handler", "subject", subject, "panic", r)
			}
		}()

		var env Envelope
		var result interface{}
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Error("Failed to decode request envelope", "subject", subject, "error", err)
			result = ErrorReply{Error: "malformed request envelope", Code: apperr.CodeValidation}
		} else {
			reply, err := handler(context.Background(), &env)
			if err != nil {
				slog.Warn("RPC handler returned error", "subject", subject, "error", err, "code", apperr.Code(err))
				result = ErrorReply{Error: err.Error(), Code: apperr.Code(err)}
			} else {
				result = reply
			}
		}

		if msg.Reply == "" {
			return
		}
		replyEnv, err := newEnvelope(env.CorrelationID, result)
		if err != nil {
			slog.Error("Failed to marshal RPC reply", "subject", subject, "error", err)
			return
		}
		data, err := json.Marshal(replyEnv)
		if err != nil {
			slog.Error("Failed to marshal RPC reply envelope", "subject", subject, "error", err)
			return
		}
		if err := msg.Respond(data); err != nil {
			slog.Error("Failed to send RPC reply", "subject", subject, "error", err)
		}
	}

	sub, err := c.conn.QueueSubscribe(subject, queue, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to serve subject %s: %w", subject, err)
	}

	slog.Info("Serving RPC subject", "subject", subject, "queue", queue)
	return sub, nil
}

func (c *Client) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
			return err
		}
	}
	return nil
}
