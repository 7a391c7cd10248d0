package hubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"hubsync/pkg/models"
	"hubsync/pkg/telemetry"
)

// PatchAction is the set of bulk message mutations the hub accepts.
type PatchAction string

const (
	ActionHide          PatchAction = "hide"
	ActionUnhide        PatchAction = "unhide"
	ActionUndo          PatchAction = "undo"
	ActionUpdateContent PatchAction = "update_content"
)

// Client is a thin JSON-over-HTTP client for the hub API. It consumes the
// collaborator contracts and never redefines them.
type Client struct {
	base    string
	key     string
	timeout time.Duration
	hc      *fasthttp.Client
}

// New returns a client for the hub API at base (e.g. "http://hub:8080").
func New(base, key string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		timeout: timeout,
		hc:      &fasthttp.Client{},
	}
}

// ListThreads fetches the household thread list.
func (c *Client) ListThreads(ctx context.Context) (models.ThreadSnapshot, error) {
	var out models.ThreadSnapshot
	body, err := c.do(ctx, fasthttp.MethodGet, "/api/hub/threads", nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode thread list: %w", err)
	}
	return out, nil
}

// ListMessages fetches one thread's message page together with the
// viewer's unread state. The server marks returned messages read as a
// side effect.
func (c *Client) ListMessages(ctx context.Context, threadID string) (models.MessageSnapshot, error) {
	var out models.MessageSnapshot
	body, err := c.do(ctx, fasthttp.MethodGet, "/api/hub/messages?thread_id="+threadID, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode message page: %w", err)
	}
	out.AttachActions()
	return out, nil
}

// PatchMessages applies a bulk mutation (hide/unhide/undo/update_content)
// to the given message ids.
func (c *Client) PatchMessages(ctx context.Context, ids []string, action PatchAction, content string) error {
	req := struct {
		MessageIDs []string    `json:"messageIds"`
		Action     PatchAction `json:"action"`
		Content    string      `json:"content,omitempty"`
	}{MessageIDs: ids, Action: action, Content: content}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, fasthttp.MethodPatch, "/api/hub/messages", b)
	return err
}

// DeleteMessages hard-deletes the given messages for everyone. The hub
// enforces that only the sender may do this; callers gate eligibility
// client-side first.
func (c *Client) DeleteMessages(ctx context.Context, ids []string) error {
	req := struct {
		MessageIDs []string `json:"messageIds"`
	}{MessageIDs: ids}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, fasthttp.MethodDelete, "/api/hub/messages", b)
	return err
}

// SendMessage posts a new message to a thread and returns the created
// message as the server stored it.
func (c *Client) SendMessage(ctx context.Context, threadID, content, topicID string) (models.Message, error) {
	var out models.Message
	req := struct {
		Content  string `json:"content"`
		ThreadID string `json:"thread_id"`
		TopicID  string `json:"topic_id,omitempty"`
	}{Content: content, ThreadID: threadID, TopicID: topicID}
	b, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	body, err := c.do(ctx, fasthttp.MethodPost, "/api/hub/messages/send", b)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to decode created message: %w", err)
	}
	return out, nil
}

// MarkMessageRead persists the read state server-side so reloads and badge
// counts reflect truth. Failures only risk an eventually-consistent server
// count; they never touch a captured unread snapshot.
func (c *Client) MarkMessageRead(ctx context.Context, messageID string) error {
	req := struct {
		MessageID string `json:"message_id"`
	}{MessageID: messageID}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, fasthttp.MethodPost, "/api/hub/messages/read", b)
	return err
}

// do performs one request and returns the response body. Non-2xx responses
// become *StatusError. The context deadline is honored; fasthttp does not
// take a context so cancellation is checked up front and mapped onto a
// request deadline.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := path
	if i := strings.IndexByte(op, '?'); i >= 0 {
		op = op[:i]
	}
	done := telemetry.Track(method + " " + op)
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(res)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.base + path)
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-Api-Key", c.key)
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	if err := c.hc.DoDeadline(req, res, deadline); err != nil {
		done(0, err)
		return nil, fmt.Errorf("hub api: %s %s: %w", method, path, err)
	}
	code := res.StatusCode()
	if code < 200 || code > 299 {
		err := &StatusError{Code: code, Body: string(res.Body())}
		done(code, err)
		return nil, err
	}
	done(code, nil)
	return append([]byte(nil), res.Body()...), nil
}
