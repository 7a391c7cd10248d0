package realtime

import (
	"context"
	"sync"
)

// Memory is an in-process Channel used by tests and single-process
// deployments. Delivery is synchronous and per-topic ordered.
type Memory struct {
	mu     sync.Mutex
	seq    int
	topics map[string]map[int]Handler
	closed bool
}

// NewMemory returns an initialized in-memory channel.
func NewMemory() *Memory {
	return &Memory{topics: make(map[string]map[int]Handler)}
}

func (m *Memory) Subscribe(topic string, h Handler) (CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.seq++
	id := m.seq
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[int]Handler)
	}
	m.topics[topic][id] = h

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			if subs := m.topics[topic]; subs != nil {
				delete(subs, id)
			}
			m.mu.Unlock()
		})
	}
	return cancel, nil
}

func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	// snapshot handlers in subscription order so delivery happens outside
	// the lock and late cancels cannot race a held lock
	subs := m.topics[topic]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, subs[id])
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(payload)
		delivered.WithLabelValues("memory").Inc()
	}
	published.WithLabelValues("memory").Inc()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.topics = make(map[string]map[int]Handler)
	m.mu.Unlock()
	return nil
}
