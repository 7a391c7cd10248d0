package realtime

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"hubsync/pkg/logger"
)

// wsFrame is the wire format of the hub's websocket event stream.
type wsFrame struct {
	Op    string          `json:"op"` // subscribe|unsubscribe|publish|event
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Websocket adapts a hub-provided websocket event stream to the Channel
// port. The connection is re-established with capped exponential backoff;
// active topic subscriptions are replayed after each reconnect.
type Websocket struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	seq      int
	handlers map[string]map[int]Handler
	closed   bool
	cancel   context.CancelFunc
}

const (
	wsBaseDelay = 1 * time.Second
	wsMaxDelay  = 30 * time.Second
)

// NewWebsocket starts a websocket-backed channel connected to url.
func NewWebsocket(url string) *Websocket {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Websocket{
		url:      url,
		handlers: make(map[string]map[int]Handler),
		cancel:   cancel,
	}
	go w.run(ctx)
	return w
}

// run owns the connection lifecycle: connect, read until failure,
// reconnect with backoff.
func (w *Websocket) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.Dial(ctx, w.url, nil)
		if err != nil {
			attempt++
			delay := backoffDelay(attempt)
			logger.Warn("ws_connect_failed", "url", w.url, "attempt", attempt, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}
		attempt = 0

		w.mu.Lock()
		w.conn = conn
		topics := make([]string, 0, len(w.handlers))
		for t := range w.handlers {
			topics = append(topics, t)
		}
		w.mu.Unlock()

		// replay active subscriptions
		for _, t := range topics {
			w.send(ctx, wsFrame{Op: "subscribe", Topic: t})
		}

		w.readLoop(ctx, conn)

		w.mu.Lock()
		if w.conn == conn {
			w.conn = nil
		}
		w.mu.Unlock()
	}
}

func (w *Websocket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Debug("ws_read_failed", "error", err)
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		var f wsFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Op != "event" {
			continue
		}
		w.mu.Lock()
		subs := w.handlers[f.Topic]
		hs := make([]Handler, 0, len(subs))
		for _, h := range subs {
			hs = append(hs, h)
		}
		w.mu.Unlock()
		if len(hs) == 0 {
			droppedLate.WithLabelValues("websocket").Inc()
			continue
		}
		for _, h := range hs {
			h(f.Data)
			delivered.WithLabelValues("websocket").Inc()
		}
	}
}

func (w *Websocket) Subscribe(topic string, h Handler) (CancelFunc, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.seq++
	id := w.seq
	first := len(w.handlers[topic]) == 0
	if w.handlers[topic] == nil {
		w.handlers[topic] = make(map[int]Handler)
	}
	w.handlers[topic][id] = h
	w.mu.Unlock()

	if first {
		w.send(context.Background(), wsFrame{Op: "subscribe", Topic: topic})
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			if subs := w.handlers[topic]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(w.handlers, topic)
				}
			}
			last := w.handlers[topic] == nil
			w.mu.Unlock()
			if last {
				w.send(context.Background(), wsFrame{Op: "unsubscribe", Topic: topic})
			}
		})
	}
	return cancel, nil
}

func (w *Websocket) Publish(ctx context.Context, topic string, payload []byte) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := w.sendErr(ctx, wsFrame{Op: "publish", Topic: topic, Data: payload}); err != nil {
		return err
	}
	published.WithLabelValues("websocket").Inc()
	return nil
}

func (w *Websocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn := w.conn
	w.conn = nil
	w.handlers = make(map[string]map[int]Handler)
	w.mu.Unlock()

	w.cancel()
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	return nil
}

// send is fire-and-forget; a dropped control frame is recovered by the
// reconnect replay.
func (w *Websocket) send(ctx context.Context, f wsFrame) {
	if err := w.sendErr(ctx, f); err != nil {
		logger.Debug("ws_send_failed", "op", f.Op, "topic", f.Topic, "error", err)
	}
}

func (w *Websocket) sendErr(ctx context.Context, f wsFrame) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(wsBaseDelay) * math.Pow(2, float64(attempt-1)))
	if d > wsMaxDelay {
		d = wsMaxDelay
	}
	// jitter to avoid thundering reconnects
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
