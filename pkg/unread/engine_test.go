package unread

import (
	"testing"
	"time"
)

// TestObserveCapturesOnce verifies the snapshot freezes at the first
// successful load and later loads cannot move it.
func TestObserveCapturesOnce(t *testing.T) {
	e := NewEngine(10 * time.Millisecond)
	e.Reset("t1")

	if !e.Observe("t1", "m5", 3) {
		t.Fatalf("first observe should capture the snapshot")
	}
	snap, state := e.Snapshot()
	if state != Snapshotted {
		t.Fatalf("state = %s, want snapshotted", state)
	}
	if snap.FirstUnreadID != "m5" || snap.Count != 3 {
		t.Fatalf("snapshot = %+v, want first=m5 count=3", snap)
	}

	// a refetch reports everything read; the frozen snapshot must not move
	if e.Observe("t1", "", 0) {
		t.Fatalf("second observe must be a no-op")
	}
	snap, _ = e.Snapshot()
	if snap.FirstUnreadID != "m5" || snap.Count != 3 {
		t.Fatalf("snapshot moved after refetch: %+v", snap)
	}
}

// TestObserveWrongThread verifies data for another thread is ignored.
func TestObserveWrongThread(t *testing.T) {
	e := NewEngine(0)
	e.Reset("t1")
	if e.Observe("t2", "m1", 1) {
		t.Fatalf("observe for a non-active thread must not capture")
	}
	if _, state := e.Snapshot(); state != Unprocessed {
		t.Fatalf("state = %s, want unprocessed", state)
	}
}

// TestNoteSendExit verifies sending with a visible banner starts the exit
// transition and clears the snapshot after the delay.
func TestNoteSendExit(t *testing.T) {
	e := NewEngine(20 * time.Millisecond)
	e.Reset("t1")
	e.Observe("t1", "m2", 2)

	if !e.NoteSend() {
		t.Fatalf("send with visible banner should start the exit")
	}
	if _, state := e.Snapshot(); state != Exiting {
		t.Fatalf("state after send = %s, want exiting", state)
	}

	deadline := time.Now().Add(time.Second)
	for {
		snap, state := e.Snapshot()
		if state == Snapshotted && snap == (Snapshot{}) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("exit never completed: state=%s snap=%+v", state, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// second send has nothing to exit
	if e.NoteSend() {
		t.Fatalf("send with no banner must not restart the exit")
	}
}

// TestNoteSendWithoutUnread verifies sending in a fully-read thread never
// enters Exiting.
func TestNoteSendWithoutUnread(t *testing.T) {
	e := NewEngine(0)
	e.Reset("t1")
	e.Observe("t1", "", 0)
	if e.NoteSend() {
		t.Fatalf("no unread banner, exit must not start")
	}
}

// TestResetCancelsExitTimer verifies a thread switch during the exit
// animation cannot clear the next thread's snapshot.
func TestResetCancelsExitTimer(t *testing.T) {
	e := NewEngine(30 * time.Millisecond)
	e.Reset("t1")
	e.Observe("t1", "m1", 1)
	e.NoteSend()

	// switch threads while the exit timer is pending
	e.Reset("t2")
	e.Observe("t2", "m9", 4)

	time.Sleep(80 * time.Millisecond)
	snap, state := e.Snapshot()
	if state != Snapshotted || snap.FirstUnreadID != "m9" || snap.Count != 4 {
		t.Fatalf("stale exit timer touched the new thread: state=%s snap=%+v", state, snap)
	}
}

// TestPlanScrollSequence verifies the anchor-then-follow scroll behavior.
func TestPlanScrollSequence(t *testing.T) {
	e := NewEngine(0)
	e.Reset("t1")
	e.Observe("t1", "m3", 2)

	if d := e.PlanScroll(0); d.Kind != ScrollNone {
		t.Fatalf("empty render scrolled: %+v", d)
	}
	d := e.PlanScroll(10)
	if d.Kind != ScrollCenterFirstUnread || d.TargetID != "m3" {
		t.Fatalf("first render = %+v, want center on m3", d)
	}
	// re-render with the same count keeps the viewport
	if d := e.PlanScroll(10); d.Kind != ScrollNone {
		t.Fatalf("same-count render scrolled: %+v", d)
	}
	// growth scrolls smoothly
	if d := e.PlanScroll(11); d.Kind != ScrollBottomSmooth {
		t.Fatalf("growth render = %+v, want smooth bottom", d)
	}
}

// TestPlanScrollNoUnread verifies the bottom-instant anchor when the
// thread opens fully read.
func TestPlanScrollNoUnread(t *testing.T) {
	e := NewEngine(0)
	e.Reset("t1")
	e.Observe("t1", "", 0)
	if d := e.PlanScroll(5); d.Kind != ScrollBottomInstant {
		t.Fatalf("first render = %+v, want instant bottom", d)
	}
}
