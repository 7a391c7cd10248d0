package realtime

import (
	"encoding/json"

	"hubsync/pkg/models"
)

// Event types carried on hub topics.
const (
	EventMessageNew    = "message.new"
	EventReceiptUpdate = "receipt.update"
)

// Envelope is the wire format for all realtime events.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessageNewPayload is published when a message is committed to a thread.
type MessageNewPayload struct {
	Message models.Message `json:"message"`
}

// ReceiptUpdatePayload tells the other member that messages reached a
// delivery status. Receivers must treat duplicate receipts as harmless.
type ReceiptUpdatePayload struct {
	ThreadID   string               `json:"thread_id"`
	MessageIDs []string             `json:"message_ids"`
	Status     models.MessageStatus `json:"status"`
	UserID     string               `json:"user_id"`
}

// Encode wraps a typed payload into an envelope and marshals it.
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// Decode parses an envelope from the wire.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(b, &env)
	return env, err
}
