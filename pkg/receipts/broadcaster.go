package receipts

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"hubsync/pkg/logger"
	"hubsync/pkg/models"
	"hubsync/pkg/realtime"
)

// Marker persists read state server-side.
type Marker interface {
	MarkMessageRead(ctx context.Context, messageID string) error
}

type receiptKey struct {
	thread  string
	message string
	status  models.MessageStatus
}

// Broadcaster tells the sender of an unread message that the recipient's
// client has it open, faster than a server round-trip poll. Broadcasts are
// fire-and-forget and deduplicated per session: publishing the same
// (thread, message, status) twice is a no-op, and receivers must treat any
// physical duplicates as harmless.
type Broadcaster struct {
	marker Marker
	ch     realtime.Channel
	lim    *rate.Limiter

	mu   sync.Mutex
	seen map[receiptKey]struct{}
}

// New builds a broadcaster publishing on ch and persisting via marker.
// rps/burst throttle channel publishes so a large initial batch cannot
// flood the broker.
func New(marker Marker, ch realtime.Channel, rps float64, burst int) *Broadcaster {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Broadcaster{
		marker: marker,
		ch:     ch,
		lim:    rate.NewLimiter(rate.Limit(rps), burst),
		seen:   make(map[receiptKey]struct{}),
	}
}

// MarkMessageRead persists the read state with the hub. A failure here only
// risks an eventually-consistent server count; callers must not let it
// touch an already-captured unread snapshot.
func (b *Broadcaster) MarkMessageRead(ctx context.Context, messageID string) error {
	return b.marker.MarkMessageRead(ctx, messageID)
}

// Broadcast publishes a "these messages are now status" event on the
// thread topic. Already-broadcast tuples are filtered out; publish errors
// are logged and never surfaced, correctness is restored by the next
// successful mark-read or a reload.
func (b *Broadcaster) Broadcast(ctx context.Context, threadID string, messageIDs []string, status models.MessageStatus, userID string) {
	fresh := b.filterSeen(threadID, messageIDs, status)
	if len(fresh) == 0 {
		return
	}
	if !b.lim.Allow() {
		// dropped receipts are recovered by server state on next load
		b.unsee(threadID, fresh, status)
		logger.Debug("receipt_broadcast_throttled", "thread", threadID, "count", len(fresh))
		return
	}
	payload, err := realtime.Encode(realtime.EventReceiptUpdate, realtime.ReceiptUpdatePayload{
		ThreadID:   threadID,
		MessageIDs: fresh,
		Status:     status,
		UserID:     userID,
	})
	if err != nil {
		logger.Error("receipt_encode_failed", "thread", threadID, "error", err)
		return
	}
	if err := b.ch.Publish(ctx, realtime.ThreadTopic(threadID), payload); err != nil {
		logger.Warn("receipt_broadcast_failed", "thread", threadID, "count", len(fresh), "error", err)
	}
}

// Reset clears the session-scoped dedup set.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	b.seen = make(map[receiptKey]struct{})
	b.mu.Unlock()
}

// filterSeen records and returns only tuples not broadcast before in this
// session.
func (b *Broadcaster) filterSeen(threadID string, ids []string, status models.MessageStatus) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var fresh []string
	for _, id := range ids {
		k := receiptKey{thread: threadID, message: id, status: status}
		if _, dup := b.seen[k]; dup {
			continue
		}
		b.seen[k] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

func (b *Broadcaster) unsee(threadID string, ids []string, status models.MessageStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.seen, receiptKey{thread: threadID, message: id, status: status})
	}
}
