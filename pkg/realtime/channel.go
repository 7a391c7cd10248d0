package realtime

import (
	"context"
	"errors"
)

// Handler receives raw event payloads published on a topic. Handlers for
// one topic are invoked in publish order; no ordering holds across topics.
type Handler func(payload []byte)

// CancelFunc tears down a subscription. It is idempotent: calling it more
// than once is safe, and no events are delivered after the first call.
type CancelFunc func()

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("realtime: channel closed")

// Channel is the realtime pub/sub port. Adapters: redis pub/sub for
// deployments sharing a broker, websocket for a hub-provided event stream,
// and an in-memory implementation for tests.
type Channel interface {
	Subscribe(topic string, h Handler) (CancelFunc, error)
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// ThreadTopic is the per-thread event topic.
func ThreadTopic(threadID string) string { return "hub:thread:" + threadID }

// HouseholdTopic is the household-wide event topic, consumed only while
// the thread list is in view.
func HouseholdTopic(householdID string) string { return "hub:household:" + householdID }
