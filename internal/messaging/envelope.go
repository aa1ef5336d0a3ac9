package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope frames every message crossing the bus. RPC replies echo the
// request's correlation id; notifications carry only id and timestamp.
type Envelope struct {
	MessageID     string          `json:"message_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

func uuid4() string {
	return uuid.New().String()
}

// newEnvelope wraps a payload, stamping message id and timestamp.
func newEnvelope(correlationID string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		MessageID:     uuid.New().String(),
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}, nil
}

// ErrorReply is the wire shape of a failed RPC. Successful replies are the
// per-subject typed payloads, each embedding models.RPCStatus.
type ErrorReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}
