package hubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"hubsync/pkg/models"
)

// fakeHub is a minimal stand-in for the hub API.
func fakeHub(t *testing.T) (*httptest.Server, *capturedRequests) {
	t.Helper()
	calls := &capturedRequests{}
	r := mux.NewRouter()

	r.HandleFunc("/api/hub/threads", func(w http.ResponseWriter, req *http.Request) {
		calls.note(req, nil)
		_ = json.NewEncoder(w).Encode(models.ThreadSnapshot{
			Threads:       []models.Thread{{ID: "t1", Title: "Groceries", UnreadCount: 2}},
			HouseholdID:   "h1",
			CurrentUserID: "u1",
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/hub/messages", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			calls.note(req, nil)
			_ = json.NewEncoder(w).Encode(models.MessageSnapshot{
				Messages:      []models.Message{{ID: "m1", Thread: "t1", Content: "hi"}, {ID: "m2", Thread: "t1"}},
				Thread:        "t1",
				HouseholdID:   "h1",
				CurrentUserID: "u1",
				FirstUnreadID: "m2",
				UnreadCount:   1,
				Actions:       []models.MessageAction{{ID: "a1", MessageID: "m2", Type: models.ActionReminder}},
			})
		default:
			var body map[string]any
			_ = json.NewDecoder(req.Body).Decode(&body)
			calls.note(req, body)
			w.WriteHeader(http.StatusOK)
		}
	}).Methods(http.MethodGet, http.MethodPatch, http.MethodDelete)

	r.HandleFunc("/api/hub/messages/send", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		calls.note(req, body)
		_ = json.NewEncoder(w).Encode(models.Message{ID: "m9", Thread: body["thread_id"].(string), Content: body["content"].(string), Status: models.StatusSent})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/hub/messages/read", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		calls.note(req, body)
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, calls
}

type capturedRequests struct {
	methods []string
	paths   []string
	keys    []string
	bodies  []map[string]any
}

func (c *capturedRequests) note(req *http.Request, body map[string]any) {
	c.methods = append(c.methods, req.Method)
	c.paths = append(c.paths, req.URL.RequestURI())
	c.keys = append(c.keys, req.Header.Get("X-Api-Key"))
	c.bodies = append(c.bodies, body)
}

func (c *capturedRequests) last() (string, string, map[string]any) {
	n := len(c.methods) - 1
	return c.methods[n], c.paths[n], c.bodies[n]
}

func TestListThreads(t *testing.T) {
	srv, calls := fakeHub(t)
	c := New(srv.URL, "secret", time.Second)

	snap, err := c.ListThreads(context.Background())
	if err != nil {
		t.Fatalf("list threads failed: %v", err)
	}
	if len(snap.Threads) != 1 || snap.Threads[0].ID != "t1" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.HouseholdID != "h1" || snap.CurrentUserID != "u1" {
		t.Fatalf("identity = %+v", snap)
	}
	if calls.keys[0] != "secret" {
		t.Fatalf("api key header = %q", calls.keys[0])
	}
}

// TestListMessagesAttachesActions verifies side-loaded actions end up on
// their messages.
func TestListMessagesAttachesActions(t *testing.T) {
	srv, _ := fakeHub(t)
	c := New(srv.URL, "secret", time.Second)

	snap, err := c.ListMessages(context.Background(), "t1")
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	if snap.FirstUnreadID != "m2" || snap.UnreadCount != 1 {
		t.Fatalf("unread state = %q/%d", snap.FirstUnreadID, snap.UnreadCount)
	}
	if len(snap.Messages[1].Actions) != 1 || snap.Messages[1].Actions[0].Type != models.ActionReminder {
		t.Fatalf("actions not attached: %+v", snap.Messages[1])
	}
	if len(snap.Messages[0].Actions) != 0 {
		t.Fatalf("actions leaked onto m1: %+v", snap.Messages[0])
	}
}

func TestPatchMessages(t *testing.T) {
	srv, calls := fakeHub(t)
	c := New(srv.URL, "secret", time.Second)

	if err := c.PatchMessages(context.Background(), []string{"m1", "m2"}, ActionHide, ""); err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	method, path, body := calls.last()
	if method != http.MethodPatch || path != "/api/hub/messages" {
		t.Fatalf("request = %s %s", method, path)
	}
	if body["action"] != "hide" {
		t.Fatalf("body = %v", body)
	}
	if ids := body["messageIds"].([]any); len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}
	if _, present := body["content"]; present {
		t.Fatalf("empty content should be omitted: %v", body)
	}
}

func TestDeleteMessages(t *testing.T) {
	srv, calls := fakeHub(t)
	c := New(srv.URL, "secret", time.Second)

	if err := c.DeleteMessages(context.Background(), []string{"m1"}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	method, path, body := calls.last()
	if method != http.MethodDelete || path != "/api/hub/messages" {
		t.Fatalf("request = %s %s", method, path)
	}
	if ids := body["messageIds"].([]any); len(ids) != 1 || ids[0] != "m1" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestSendMessage(t *testing.T) {
	srv, calls := fakeHub(t)
	c := New(srv.URL, "secret", time.Second)

	msg, err := c.SendMessage(context.Background(), "t1", "dinner?", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.ID != "m9" || msg.Thread != "t1" || msg.Content != "dinner?" {
		t.Fatalf("created = %+v", msg)
	}
	_, _, body := calls.last()
	if _, present := body["topic_id"]; present {
		t.Fatalf("empty topic should be omitted: %v", body)
	}
}

func TestMarkMessageRead(t *testing.T) {
	srv, calls := fakeHub(t)
	c := New(srv.URL, "secret", time.Second)

	if err := c.MarkMessageRead(context.Background(), "m2"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	method, path, body := calls.last()
	if method != http.MethodPost || path != "/api/hub/messages/read" {
		t.Fatalf("request = %s %s", method, path)
	}
	if body["message_id"] != "m2" {
		t.Fatalf("body = %v", body)
	}
}

// TestStatusError verifies non-2xx responses map to *StatusError and
// IsStatus matches.
func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()
	c := New(srv.URL, "", time.Second)

	_, err := c.ListThreads(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("IsStatus(403) = false for %v", err)
	}
	if IsStatus(err, http.StatusNotFound) {
		t.Fatalf("IsStatus(404) matched a 403")
	}
}

// TestContextCanceled verifies an already-canceled context never issues a
// request.
func TestContextCanceled(t *testing.T) {
	srv, calls := fakeHub(t)
	c := New(srv.URL, "", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListThreads(ctx); err == nil {
		t.Fatalf("expected context error")
	}
	if len(calls.methods) != 0 {
		t.Fatalf("request was sent despite canceled context")
	}
}
