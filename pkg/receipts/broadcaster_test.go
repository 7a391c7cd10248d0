package receipts

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"hubsync/pkg/models"
	"hubsync/pkg/realtime"
)

type fakeMarker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeMarker) MarkMessageRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.err
}

func collectReceipts(t *testing.T, ch realtime.Channel, threadID string) *[]realtime.ReceiptUpdatePayload {
	t.Helper()
	var mu sync.Mutex
	var got []realtime.ReceiptUpdatePayload
	_, err := ch.Subscribe(realtime.ThreadTopic(threadID), func(b []byte) {
		env, err := realtime.Decode(b)
		if err != nil || env.Type != realtime.EventReceiptUpdate {
			return
		}
		var p realtime.ReceiptUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	return &got
}

// TestBroadcastDedup verifies repeated broadcasts of the same
// (thread, message, status) tuple publish exactly once per session.
func TestBroadcastDedup(t *testing.T) {
	ch := realtime.NewMemory()
	defer ch.Close()
	b := New(&fakeMarker{}, ch, 100, 100)
	got := collectReceipts(t, ch, "t1")

	b.Broadcast(context.Background(), "t1", []string{"m1", "m2"}, models.StatusRead, "u1")
	b.Broadcast(context.Background(), "t1", []string{"m1", "m2"}, models.StatusRead, "u1")
	b.Broadcast(context.Background(), "t1", []string{"m2", "m3"}, models.StatusRead, "u1")

	if len(*got) != 2 {
		t.Fatalf("got %d publishes, want 2", len(*got))
	}
	if ids := (*got)[0].MessageIDs; len(ids) != 2 || ids[0] != "m1" || ids[1] != "m2" {
		t.Fatalf("first publish ids = %v", ids)
	}
	if ids := (*got)[1].MessageIDs; len(ids) != 1 || ids[0] != "m3" {
		t.Fatalf("second publish ids = %v, want only the fresh m3", ids)
	}
}

// TestBroadcastStatusIsPartOfKey verifies a delivered receipt does not
// suppress a later read receipt for the same message.
func TestBroadcastStatusIsPartOfKey(t *testing.T) {
	ch := realtime.NewMemory()
	defer ch.Close()
	b := New(&fakeMarker{}, ch, 100, 100)
	got := collectReceipts(t, ch, "t1")

	b.Broadcast(context.Background(), "t1", []string{"m1"}, models.StatusDelivered, "u1")
	b.Broadcast(context.Background(), "t1", []string{"m1"}, models.StatusRead, "u1")

	if len(*got) != 2 {
		t.Fatalf("got %d publishes, want 2", len(*got))
	}
}

// TestBroadcastThrottleUnsees verifies a throttled batch is forgotten so
// a later attempt can still broadcast it.
func TestBroadcastThrottleUnsees(t *testing.T) {
	ch := realtime.NewMemory()
	defer ch.Close()
	// burst 1: the second call in the same instant is throttled
	b := New(&fakeMarker{}, ch, 0.001, 1)
	got := collectReceipts(t, ch, "t1")

	b.Broadcast(context.Background(), "t1", []string{"m1"}, models.StatusRead, "u1")
	b.Broadcast(context.Background(), "t1", []string{"m2"}, models.StatusRead, "u1")
	if len(*got) != 1 {
		t.Fatalf("got %d publishes, want 1 (second throttled)", len(*got))
	}

	// m2 must not be remembered as broadcast
	b.lim = rate.NewLimiter(100, 1)
	b.Broadcast(context.Background(), "t1", []string{"m2"}, models.StatusRead, "u1")
	if len(*got) != 2 {
		t.Fatalf("throttled tuple was never re-broadcast: %d publishes", len(*got))
	}
}

// TestResetClearsDedup verifies a session reset allows re-broadcasting.
func TestResetClearsDedup(t *testing.T) {
	ch := realtime.NewMemory()
	defer ch.Close()
	b := New(&fakeMarker{}, ch, 100, 100)
	got := collectReceipts(t, ch, "t1")

	b.Broadcast(context.Background(), "t1", []string{"m1"}, models.StatusRead, "u1")
	b.Reset()
	b.Broadcast(context.Background(), "t1", []string{"m1"}, models.StatusRead, "u1")

	if len(*got) != 2 {
		t.Fatalf("got %d publishes, want 2 after reset", len(*got))
	}
}

// TestMarkMessageReadDelegates verifies persistence goes through the
// marker untouched.
func TestMarkMessageReadDelegates(t *testing.T) {
	m := &fakeMarker{}
	b := New(m, realtime.NewMemory(), 1, 1)
	if err := b.MarkMessageRead(context.Background(), "m9"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if len(m.calls) != 1 || m.calls[0] != "m9" {
		t.Fatalf("marker calls = %v", m.calls)
	}
}
