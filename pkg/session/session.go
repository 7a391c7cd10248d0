package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"hubsync/pkg/cache"
	"hubsync/pkg/hubapi"
	"hubsync/pkg/logger"
	"hubsync/pkg/models"
	"hubsync/pkg/query"
	"hubsync/pkg/realtime"
	"hubsync/pkg/receipts"
	"hubsync/pkg/unread"
)

// API is the hub surface the session consumes.
type API interface {
	ListThreads(ctx context.Context) (models.ThreadSnapshot, error)
	ListMessages(ctx context.Context, threadID string) (models.MessageSnapshot, error)
	PatchMessages(ctx context.Context, ids []string, action hubapi.PatchAction, content string) error
	DeleteMessages(ctx context.Context, ids []string) error
	SendMessage(ctx context.Context, threadID, content, topicID string) (models.Message, error)
	MarkMessageRead(ctx context.Context, messageID string) error
}

// Notifier surfaces non-blocking user-visible errors (toast analog).
type Notifier func(msg string)

// View identifies what the user is looking at.
type View int

const (
	ViewList View = iota
	ViewThread
)

var (
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session: closed")
	// ErrStaleThread marks a fetch whose thread is no longer active; its
	// result was discarded.
	ErrStaleThread = errors.New("session: stale thread fetch discarded")
	// ErrNoActiveThread is returned by thread-scoped operations in list view.
	ErrNoActiveThread = errors.New("session: no active thread")
	// ErrDeleteForbidden is returned when a delete-for-everyone request
	// includes messages the acting user may not remove.
	ErrDeleteForbidden = errors.New("session: delete for everyone not permitted for selection")
)

// Options tunes a session.
type Options struct {
	// Notify receives user-visible mutation failures. Optional.
	Notify Notifier
	// OnScroll receives scroll directives from the unread engine. Optional.
	OnScroll func(unread.ScrollDirective)
}

// Session is the explicit context object shared by the hub views: active
// view, active thread, household identity, and the reconciled thread and
// message collections. All external callbacks re-enter through methods
// that re-check liveness and thread identity at resolution time, so a
// late fetch or channel event for a torn-down view is a no-op.
type Session struct {
	api    API
	ch     realtime.Channel
	rec    *receipts.Broadcaster
	eng    *unread.Engine
	notify Notifier
	scroll func(unread.ScrollDirective)

	mu           sync.Mutex
	closed       bool
	view         View
	activeThread string
	gen          uint64 // bumped on every open/close; stale guard
	householdID  string
	userID       string
	threads      []models.Thread
	messages     []models.Message

	cancelThread    realtime.CancelFunc
	cancelHousehold realtime.CancelFunc
}

// New builds a session. Call Start to load the thread list and begin
// receiving household events.
func New(api API, ch realtime.Channel, rec *receipts.Broadcaster, eng *unread.Engine, opts Options) *Session {
	s := &Session{
		api:    api,
		ch:     ch,
		rec:    rec,
		eng:    eng,
		notify: opts.Notify,
		scroll: opts.OnScroll,
	}
	if s.notify == nil {
		s.notify = func(string) {}
	}
	if s.scroll == nil {
		s.scroll = func(unread.ScrollDirective) {}
	}
	return s
}

// Start renders the last-known cached thread list immediately, then
// fetches server truth, refreshes the cache, and subscribes to the
// household topic for thread-list badge updates.
func (s *Session) Start(ctx context.Context) error {
	if snap, ok := cache.Threads(); ok {
		s.mu.Lock()
		if len(s.threads) == 0 {
			s.threads = snap.Threads
			s.householdID = snap.HouseholdID
			s.userID = snap.CurrentUserID
		}
		s.mu.Unlock()
	}

	snap, err := s.api.ListThreads(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.threads = snap.Threads
	s.householdID = snap.HouseholdID
	s.userID = snap.CurrentUserID
	s.mu.Unlock()

	if err := cache.SyncThreads(snap); err != nil {
		logger.Debug("threads_cache_sync_failed", "error", err)
	}
	s.subscribeHousehold()
	return nil
}

// OpenThread switches the view to threadID: it resets per-thread state,
// swaps realtime subscriptions (household off, thread on), fetches the
// message page, snapshots unread state, zeroes the list badge, and
// broadcasts receipts for the already-unread messages from the other
// member.
func (s *Session) OpenThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.view = ViewThread
	s.activeThread = threadID
	s.messages = nil
	// no state leaks between threads: snapshot, scroll tracking and the
	// receipt dedup window all reset with the thread identity
	s.eng.Reset(threadID)
	s.rec.Reset()
	cancelT := s.cancelThread
	cancelH := s.cancelHousehold
	s.cancelThread = nil
	s.cancelHousehold = nil
	s.mu.Unlock()

	if cancelT != nil {
		cancelT()
	}
	if cancelH != nil {
		cancelH()
	}

	// last-known page for instant rendering before network truth arrives
	if page, ok := cache.Messages(threadID); ok {
		s.mu.Lock()
		if s.gen == gen {
			s.messages = page.Messages
		}
		s.mu.Unlock()
	}

	snap, err := s.api.ListMessages(ctx, threadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.gen != gen || s.activeThread != threadID {
		s.mu.Unlock()
		logger.Debug("message_fetch_discarded", "thread", threadID)
		return ErrStaleThread
	}
	s.messages = snap.Messages
	captured := s.eng.Observe(threadID, snap.FirstUnreadID, snap.UnreadCount)
	if captured {
		// the server already marked these read while returning them;
		// zero the badge now rather than waiting for a refetch
		s.threads = query.ZeroUnread(s.threads, threadID)
	}
	directive := s.eng.PlanScroll(len(snap.Messages))
	userID := s.userID
	var unreadFromOther []string
	for _, m := range snap.Messages {
		if m.Unread && m.Sender != userID {
			unreadFromOther = append(unreadFromOther, m.ID)
		}
	}
	s.mu.Unlock()

	if captured {
		cache.ZeroUnread(threadID)
	}
	if err := cache.SyncMessages(threadID, snap); err != nil {
		logger.Debug("messages_cache_sync_failed", "thread", threadID, "error", err)
	}
	s.scroll(directive)

	if len(unreadFromOther) > 0 {
		s.rec.Broadcast(ctx, threadID, unreadFromOther, models.StatusRead, userID)
	}

	cancel, err := s.ch.Subscribe(realtime.ThreadTopic(threadID), func(payload []byte) {
		s.handleThreadEvent(gen, threadID, payload)
	})
	if err != nil {
		logger.Warn("thread_subscribe_failed", "thread", threadID, "error", err)
		return nil
	}
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancelThread = cancel
	s.mu.Unlock()
	return nil
}

// CloseThread returns to the list view: the thread subscription is torn
// down exactly once, per-thread state is reset, and the household
// subscription resumes so list badges stay live.
func (s *Session) CloseThread() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.view = ViewList
	s.activeThread = ""
	s.messages = nil
	s.eng.Reset("")
	cancel := s.cancelThread
	s.cancelThread = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.subscribeHousehold()
}

// Close tears the session down. All later callbacks and operations no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	cancelT := s.cancelThread
	cancelH := s.cancelHousehold
	s.cancelThread = nil
	s.cancelHousehold = nil
	s.eng.Reset("")
	s.mu.Unlock()

	if cancelT != nil {
		cancelT()
	}
	if cancelH != nil {
		cancelH()
	}
}

// Send posts a message to the active thread. On success the created
// message is appended locally, the unread banner (if showing) starts its
// exit transition, and the view scrolls smoothly to the bottom.
func (s *Session) Send(ctx context.Context, content string) (models.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Message{}, ErrClosed
	}
	threadID := s.activeThread
	gen := s.gen
	s.mu.Unlock()
	if threadID == "" {
		return models.Message{}, ErrNoActiveThread
	}

	msg, err := s.api.SendMessage(ctx, threadID, content, "")
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return msg, nil
	}
	s.messages = query.AppendMessage(s.messages, msg)
	s.threads = query.BumpThread(s.threads, threadID, msg.Content, msg.TS, false)
	s.eng.NoteSend()
	directive := s.eng.PlanScroll(len(s.messages))
	s.mu.Unlock()

	s.scroll(directive)
	s.syncActivePage(threadID)
	return msg, nil
}

// HideMessages hides the selection from this viewer only ("delete for
// me"); the other household member keeps seeing the messages. Applied
// optimistically with rollback on failure.
func (s *Session) HideMessages(ctx context.Context, ids []string) error {
	return s.patchOptimistic(ctx, ids, hubapi.ActionHide, func(in []models.Message) []models.Message {
		return query.SetHidden(in, ids, true)
	}, "Could not hide messages")
}

// UnhideMessages restores hidden messages for this viewer.
func (s *Session) UnhideMessages(ctx context.Context, ids []string) error {
	return s.patchOptimistic(ctx, ids, hubapi.ActionUnhide, func(in []models.Message) []models.Message {
		return query.SetHidden(in, ids, false)
	}, "Could not restore messages")
}

// UndoDelete restores recently deleted messages while the undo window is
// open.
func (s *Session) UndoDelete(ctx context.Context, ids []string) error {
	return s.patchOptimistic(ctx, ids, hubapi.ActionUndo, func(in []models.Message) []models.Message {
		out := make([]models.Message, len(in))
		copy(out, in)
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		for i := range out {
			if _, ok := set[out[i].ID]; ok {
				out[i].DeletedTS = 0
				out[i].DeletedBy = ""
			}
		}
		return out
	}, "Could not undo")
}

// DeleteForEveryone hard-deletes the selection for both members. It is
// permitted only when the acting user sent every selected message and
// none is converted or already deleted; anything else disables the whole
// action rather than deleting a partial set.
func (s *Session) DeleteForEveryone(ctx context.Context, ids []string) error {
	s.mu.Lock()
	selected := make([]models.Message, 0, len(ids))
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, m := range s.messages {
		if _, ok := set[m.ID]; ok {
			selected = append(selected, m)
		}
	}
	userID := s.userID
	threadID := s.activeThread
	s.mu.Unlock()

	// an id the local list cannot verify fails the gate closed
	if len(selected) != len(set) || !query.CanDeleteForEveryone(selected, userID) {
		return ErrDeleteForbidden
	}

	now := time.Now().UTC().UnixNano()
	err := query.Run(ctx, query.Mutation[[]models.Message]{
		Read:  s.readMessages,
		Apply: func(in []models.Message) []models.Message { return query.SetDeleted(in, ids, userID, now) },
		Write: s.writeMessages,
		Request: func(ctx context.Context) error {
			return s.api.DeleteMessages(ctx, ids)
		},
		OnError: func(err error) {
			logger.Warn("delete_for_everyone_failed", "thread", threadID, "count", len(ids), "error", err)
			s.notify("Could not delete messages")
		},
	})
	if err == nil {
		s.syncActivePage(threadID)
	}
	return err
}

// EditMessage replaces a message's content.
func (s *Session) EditMessage(ctx context.Context, id, content string) error {
	return s.patchOptimistic(ctx, []string{id}, hubapi.ActionUpdateContent, func(in []models.Message) []models.Message {
		out := make([]models.Message, len(in))
		copy(out, in)
		for i := range out {
			if out[i].ID == id {
				out[i].Content = content
			}
		}
		return out
	}, "Could not edit message", content)
}

// Threads returns a copy of the reconciled thread list.
func (s *Session) Threads() []models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// Messages returns a copy of the active thread's reconciled messages.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ActiveThread returns the open thread id, or "" in list view.
func (s *Session) ActiveThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThread
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// UnreadSnapshot exposes the frozen separator state for rendering.
func (s *Session) UnreadSnapshot() (unread.Snapshot, unread.State) {
	return s.eng.Snapshot()
}

// handleThreadEvent processes a live event on the open thread's topic.
// The generation check makes late deliveries after a thread switch or
// teardown strict no-ops.
func (s *Session) handleThreadEvent(gen uint64, threadID string, payload []byte) {
	env, err := realtime.Decode(payload)
	if err != nil {
		logger.Debug("thread_event_decode_failed", "thread", threadID, "error", err)
		return
	}
	switch env.Type {
	case realtime.EventMessageNew:
		var p realtime.MessageNewPayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return
		}
		s.onLiveMessage(gen, threadID, p.Message)
	case realtime.EventReceiptUpdate:
		var p realtime.ReceiptUpdatePayload
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return
		}
		s.onReceipt(gen, p)
	}
}

// onLiveMessage appends a message from the other member, marks it read
// with the hub, and broadcasts the receipt so the sender sees "read"
// without polling. Own messages arriving via the channel are ignored;
// they were already applied optimistically at send time.
func (s *Session) onLiveMessage(gen uint64, threadID string, msg models.Message) {
	s.mu.Lock()
	if s.closed || s.gen != gen || s.activeThread != threadID {
		s.mu.Unlock()
		return
	}
	if msg.Sender == s.userID {
		s.mu.Unlock()
		return
	}
	for _, m := range s.messages {
		if m.ID == msg.ID {
			// duplicate delivery after a resubscribe; drop
			s.mu.Unlock()
			return
		}
	}
	s.messages = query.AppendMessage(s.messages, msg)
	s.threads = query.BumpThread(s.threads, threadID, msg.Content, msg.TS, false)
	directive := s.eng.PlanScroll(len(s.messages))
	userID := s.userID
	s.mu.Unlock()

	s.scroll(directive)

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()
	if err := s.rec.MarkMessageRead(ctx, msg.ID); err != nil {
		// the frozen unread snapshot is unaffected; server count catches
		// up on the next successful mark or reload
		logger.Warn("mark_read_failed", "message", msg.ID, "error", err)
	}
	s.rec.Broadcast(ctx, threadID, []string{msg.ID}, models.StatusRead, userID)
	s.syncActivePage(threadID)
}

// onReceipt upgrades delivery status on the viewer's own messages.
// Duplicate receipts are harmless by construction (monotonic upgrade).
func (s *Session) onReceipt(gen uint64, p realtime.ReceiptUpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		return
	}
	if p.UserID == s.userID {
		// own broadcast reflected back
		return
	}
	s.messages = query.SetStatus(s.messages, p.MessageIDs, p.Status)
}

// handleHouseholdEvent keeps thread-list badges live while no thread is
// open. A delayed event for the thread we just opened must not clobber
// the optimistic badge zeroing, so events for the active thread are
// ignored (the per-thread channel covers them).
func (s *Session) handleHouseholdEvent(gen uint64, payload []byte) {
	env, err := realtime.Decode(payload)
	if err != nil {
		return
	}
	if env.Type != realtime.EventMessageNew {
		return
	}
	var p realtime.MessageNewPayload
	if err := unmarshalPayload(env.Payload, &p); err != nil {
		return
	}

	s.mu.Lock()
	if s.closed || s.gen != gen || s.view != ViewList {
		s.mu.Unlock()
		return
	}
	if p.Message.Thread == s.activeThread && s.activeThread != "" {
		s.mu.Unlock()
		return
	}
	known := false
	for _, th := range s.threads {
		if th.ID == p.Message.Thread {
			known = true
			break
		}
	}
	if !known {
		// the other member just created this thread; the local list has
		// never seen it, so a bump has nothing to land on
		s.mu.Unlock()
		s.refreshThreads(gen)
		return
	}
	countUnread := p.Message.Sender != s.userID
	s.threads = query.BumpThread(s.threads, p.Message.Thread, p.Message.Content, p.Message.TS, countUnread)
	snap := models.ThreadSnapshot{Threads: s.threads, HouseholdID: s.householdID, CurrentUserID: s.userID}
	s.mu.Unlock()

	if err := cache.SyncThreads(snap); err != nil {
		logger.Debug("threads_cache_sync_failed", "error", err)
	}
}

// refreshThreads refetches the thread list so a thread created by the
// other member mid-session shows up without a restart. Stale results are
// dropped on the usual generation check.
func (s *Session) refreshThreads(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.api.ListThreads(ctx)
	if err != nil {
		logger.Warn("thread_list_refresh_failed", "error", err)
		return
	}
	s.mu.Lock()
	if s.closed || s.gen != gen || s.view != ViewList {
		s.mu.Unlock()
		return
	}
	s.threads = snap.Threads
	s.householdID = snap.HouseholdID
	s.userID = snap.CurrentUserID
	s.mu.Unlock()
	if err := cache.SyncThreads(snap); err != nil {
		logger.Debug("threads_cache_sync_failed", "error", err)
	}
}

// subscribeHousehold enables the household topic for the list view. It is
// a no-op while a thread is open or the household is unknown, preventing
// double counting with the per-thread subscription.
func (s *Session) subscribeHousehold() {
	s.mu.Lock()
	if s.closed || s.view != ViewList || s.householdID == "" || s.cancelHousehold != nil {
		s.mu.Unlock()
		return
	}
	householdID := s.householdID
	gen := s.gen
	s.mu.Unlock()

	cancel, err := s.ch.Subscribe(realtime.HouseholdTopic(householdID), func(payload []byte) {
		s.handleHouseholdEvent(gen, payload)
	})
	if err != nil {
		logger.Warn("household_subscribe_failed", "household", householdID, "error", err)
		return
	}
	s.mu.Lock()
	if s.closed || s.gen != gen || s.cancelHousehold != nil {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancelHousehold = cancel
	s.mu.Unlock()
}

// patchOptimistic runs the shared optimistic mutation for PATCH-backed
// actions.
func (s *Session) patchOptimistic(ctx context.Context, ids []string, action hubapi.PatchAction, apply func([]models.Message) []models.Message, failMsg string, content ...string) error {
	s.mu.Lock()
	threadID := s.activeThread
	s.mu.Unlock()
	if threadID == "" {
		return ErrNoActiveThread
	}
	var body string
	if len(content) > 0 {
		body = content[0]
	}
	err := query.Run(ctx, query.Mutation[[]models.Message]{
		Read:  s.readMessages,
		Apply: apply,
		Write: s.writeMessages,
		Request: func(ctx context.Context) error {
			return s.api.PatchMessages(ctx, ids, action, body)
		},
		OnError: func(err error) {
			logger.Warn("message_patch_failed", "thread", threadID, "action", string(action), "error", err)
			s.notify(failMsg)
		},
	})
	if err == nil {
		s.syncActivePage(threadID)
	}
	return err
}

func (s *Session) readMessages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) writeMessages(msgs []models.Message) {
	s.mu.Lock()
	s.messages = msgs
	s.mu.Unlock()
}

// syncActivePage refreshes the cached page for the active thread from the
// current in-memory state. Cache failures never surface.
func (s *Session) syncActivePage(threadID string) {
	s.mu.Lock()
	if s.closed || s.activeThread != threadID {
		s.mu.Unlock()
		return
	}
	snap := models.MessageSnapshot{
		Messages:      append([]models.Message(nil), s.messages...),
		Thread:        threadID,
		HouseholdID:   s.householdID,
		CurrentUserID: s.userID,
	}
	s.mu.Unlock()
	if err := cache.SyncMessages(threadID, snap); err != nil {
		logger.Debug("messages_cache_sync_failed", "thread", threadID, "error", err)
	}
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		logger.Debug("event_payload_decode_failed", "error", err)
		return err
	}
	return nil
}
