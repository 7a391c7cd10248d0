package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hubsync/pkg/logger"
	"hubsync/pkg/state"
)

// Minimal, low-overhead operation telemetry designed for local usage.
// Every hub call is measured; only slow calls are logged, and a JSONL
// trail is kept under the state dir when one is configured.

var (
	writerOnce sync.Once
	writerCh   chan []byte

	mu            sync.RWMutex
	slowThreshold = 200 * time.Millisecond

	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hubsync_hub_op_duration_seconds",
		Help:    "Duration of hub API operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	opErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubsync_hub_op_errors_total",
		Help: "Hub API operations that returned an error.",
	}, []string{"op"})
)

// Record is one completed hub operation.
type Record struct {
	Time       string `json:"time"`
	Op         string `json:"op"`
	DurationMs int64  `json:"duration_ms"`
	Status     int    `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SetSlowThreshold overrides the slow-operation logging threshold.
func SetSlowThreshold(d time.Duration) {
	mu.Lock()
	slowThreshold = d
	mu.Unlock()
}

// initWriter lazily starts a background writer appending JSON lines to
// ops.jsonl under the telemetry state dir. Without a configured state dir
// the writer never starts and records are dropped.
func initWriter() {
	writerCh = make(chan []byte, 1024)
	go func() {
		dir := state.PathsVar.Telemetry
		if dir == "" {
			for range writerCh {
			}
			return
		}
		f, err := os.OpenFile(filepath.Join(dir, "ops.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			for range writerCh {
			}
			return
		}
		defer f.Close()
		for b := range writerCh {
			_, _ = f.Write(append(b, '\n'))
		}
	}()
}

// Observe records one finished operation: metrics always, a warn log when
// it was slow, and a JSONL record when the writer is available.
func Observe(op string, start time.Time, status int, err error) {
	d := time.Since(start)
	opDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		opErrors.WithLabelValues(op).Inc()
	}

	mu.RLock()
	slow := d >= slowThreshold
	mu.RUnlock()
	if slow {
		logger.Warn("slow_hub_op", "op", op, "duration_ms", d.Milliseconds(), "status", status)
	}

	rec := Record{
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Op:         op,
		DurationMs: d.Milliseconds(),
		Status:     status,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	b, merr := json.Marshal(rec)
	if merr != nil {
		return
	}
	writerOnce.Do(initWriter)
	select {
	case writerCh <- b:
	default:
		// never block an operation on telemetry
	}
}

// Track starts timing an operation; the returned func finishes it.
func Track(op string) func(status int, err error) {
	start := time.Now()
	return func(status int, err error) {
		Observe(op, start, status, err)
	}
}
