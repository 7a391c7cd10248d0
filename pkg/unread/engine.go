package unread

import (
	"sync"
	"time"

	"hubsync/pkg/logger"
)

// State is the per-thread-open lifecycle of the unread separator.
type State int

const (
	// Unprocessed: no snapshot captured yet for this thread-open.
	Unprocessed State = iota
	// Snapshotted: the server's unread state was copied once and frozen.
	Snapshotted
	// Exiting: the separator is playing its exit animation; the snapshot
	// clears after the configured delay.
	Exiting
)

func (s State) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case Snapshotted:
		return "snapshotted"
	case Exiting:
		return "exiting"
	}
	return "unknown"
}

// Snapshot is the frozen unread state captured at thread-open time. It is
// deliberately not recomputed on later fetches so the "N unread" separator
// cannot jump mid-session even as messages get marked read server-side.
type Snapshot struct {
	FirstUnreadID string
	Count         int
}

// Engine reconciles the viewer-facing unread marker for one open thread at
// a time. All methods are safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	threadID  string
	state     State
	snap      Snapshot
	exitDelay time.Duration
	gen       uint64 // bumped on Reset; guards stale exit timers
	timer     *time.Timer

	rendered  bool
	lastCount int
}

// NewEngine returns an engine whose exit animation lasts exitDelay before
// the snapshot clears.
func NewEngine(exitDelay time.Duration) *Engine {
	if exitDelay <= 0 {
		exitDelay = 300 * time.Millisecond
	}
	return &Engine{exitDelay: exitDelay}
}

// Observe offers the server-computed unread state from a successful data
// load. The snapshot is captured exactly once per thread-open: repeated
// re-fetches and re-renders are no-ops so the separator never moves.
// Returns true when this call captured the snapshot.
func (e *Engine) Observe(threadID, firstUnreadID string, count int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if threadID != e.threadID {
		logger.Debug("unread_observe_stale", "thread", threadID, "active", e.threadID)
		return false
	}
	if e.state != Unprocessed {
		return false
	}
	e.state = Snapshotted
	e.snap = Snapshot{FirstUnreadID: firstUnreadID, Count: count}
	return true
}

// Snapshot returns the frozen snapshot and current state.
func (e *Engine) Snapshot() (Snapshot, State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap, e.state
}

// NoteSend is called when the viewer sends a message. If an unread banner
// is showing, the engine enters Exiting and, after the exit delay, clears
// the snapshot to {none, 0}. A later reopen of the thread goes through
// Reset and cannot resurrect the old separator. Returns true when the exit
// transition started.
func (e *Engine) NoteSend() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Snapshotted || e.snap.Count == 0 {
		return false
	}
	e.state = Exiting
	gen := e.gen
	e.timer = time.AfterFunc(e.exitDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen != gen || e.state != Exiting {
			// a Reset raced the timer; nothing to clear
			return
		}
		e.state = Snapshotted
		e.snap = Snapshot{}
		e.timer = nil
	})
	return true
}

// Reset is called synchronously when the thread identity changes. The
// snapshot, scroll tracking, and any pending exit timer are all dropped so
// no state leaks between threads.
func (e *Engine) Reset(threadID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.threadID = threadID
	e.state = Unprocessed
	e.snap = Snapshot{}
	e.rendered = false
	e.lastCount = 0
}
