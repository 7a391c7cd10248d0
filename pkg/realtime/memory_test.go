package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"hubsync/pkg/models"
)

// TestMemoryDeliversInOrder verifies per-topic publish ordering.
func TestMemoryDeliversInOrder(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var got []string
	if _, err := m.Subscribe("hub:thread:t1", func(b []byte) {
		got = append(got, string(b))
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, p := range []string{"a", "b", "c"} {
		if err := m.Publish(context.Background(), "hub:thread:t1", []byte(p)); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("delivery order = %v", got)
	}
}

// TestMemoryTopicIsolation verifies no cross-topic delivery.
func TestMemoryTopicIsolation(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var got int
	_, _ = m.Subscribe("hub:thread:t1", func([]byte) { got++ })
	if err := m.Publish(context.Background(), "hub:thread:t2", []byte("x")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if got != 0 {
		t.Fatalf("handler fired for foreign topic")
	}
}

// TestMemoryCancelIdempotent verifies cancel stops delivery and a second
// cancel is harmless.
func TestMemoryCancelIdempotent(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var got int
	cancel, err := m.Subscribe("hub:thread:t1", func([]byte) { got++ })
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	_ = m.Publish(context.Background(), "hub:thread:t1", []byte("x"))
	cancel()
	cancel()
	_ = m.Publish(context.Background(), "hub:thread:t1", []byte("y"))
	if got != 1 {
		t.Fatalf("got %d deliveries, want 1", got)
	}
}

// TestMemoryClosed verifies operations on a closed channel fail with
// ErrClosed.
func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	_ = m.Close()
	if _, err := m.Subscribe("t", func([]byte) {}); err != ErrClosed {
		t.Fatalf("subscribe after close: %v, want ErrClosed", err)
	}
	if err := m.Publish(context.Background(), "t", nil); err != ErrClosed {
		t.Fatalf("publish after close: %v, want ErrClosed", err)
	}
}

// TestEnvelopeRoundTrip verifies events decode back to their typed
// payloads.
func TestEnvelopeRoundTrip(t *testing.T) {
	b, err := Encode(EventMessageNew, MessageNewPayload{
		Message: models.Message{ID: "m1", Thread: "t1", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	env, err := Decode(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.Type != EventMessageNew {
		t.Fatalf("type = %s", env.Type)
	}
	var p MessageNewPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if p.Message.ID != "m1" || p.Message.Thread != "t1" {
		t.Fatalf("payload = %+v", p.Message)
	}
}

// TestDecodeRejectsGarbage verifies malformed frames surface an error
// instead of a zero envelope.
func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
