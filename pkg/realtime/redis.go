package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"hubsync/pkg/logger"
)

// Redis adapts a shared redis broker to the Channel port. Redis pub/sub
// preserves per-channel publish order, which satisfies the per-topic
// ordering contract.
type Redis struct {
	rdb    *redis.Client
	mu     sync.Mutex
	subs   map[*redisSub]struct{}
	closed bool
}

type redisSub struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
}

// NewRedis connects a redis-backed channel.
func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Redis{rdb: rdb, subs: make(map[*redisSub]struct{})}
}

func (r *Redis) Subscribe(topic string, h Handler) (CancelFunc, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	ps := r.rdb.Subscribe(ctx, topic)
	sub := &redisSub{ps: ps, cancel: cancel}
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ctx.Err() != nil {
					// cancelled between receive and dispatch; drop
					droppedLate.WithLabelValues("redis").Inc()
					return
				}
				h([]byte(msg.Payload))
				delivered.WithLabelValues("redis").Inc()
			}
		}
	}()

	var once sync.Once
	cancelFn := func() {
		once.Do(func() {
			cancel()
			if err := ps.Close(); err != nil {
				logger.Debug("redis_unsubscribe_close", "topic", topic, "error", err)
			}
			r.mu.Lock()
			delete(r.subs, sub)
			r.mu.Unlock()
		})
	}
	return cancelFn, nil
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.mu.Unlock()
	if err := r.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return err
	}
	published.WithLabelValues("redis").Inc()
	return nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := make([]*redisSub, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.subs = make(map[*redisSub]struct{})
	r.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		_ = s.ps.Close()
	}
	return r.rdb.Close()
}
