package models

type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageSystem MessageType = "system"
)

// MessageStatus tracks delivery progression. Transitions are monotonic:
// sent -> delivered -> read; a receipt never moves a message backwards.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Upgrade returns the later of the two statuses.
func (s MessageStatus) Upgrade(to MessageStatus) MessageStatus {
	if to.rank() > s.rank() {
		return to
	}
	return s
}

type Message struct {
	ID      string        `json:"id"`
	Thread  string        `json:"thread_id"`
	Sender  string        `json:"sender_user_id,omitempty"`
	Content string        `json:"content,omitempty"`
	Type    MessageType   `json:"message_type,omitempty"`
	TS      int64         `json:"created_at"`
	Status  MessageStatus `json:"status,omitempty"`
	// DeletedTS/DeletedBy record a hard "delete for everyone"; once set the
	// content is a tombstone for every viewer outside a transient undo window.
	DeletedTS int64  `json:"deleted_at,omitempty"`
	DeletedBy string `json:"deleted_by,omitempty"`
	// HiddenByMe is a per-viewer flag ("delete for me"); it is client-local
	// authoritative and never shown to the other household member.
	HiddenByMe bool `json:"is_hidden_by_me,omitempty"`
	// Unread is server-computed relative to the viewer at fetch time.
	Unread bool `json:"is_unread,omitempty"`
	// Actions attached to this message (transaction, reminder, ...).
	Actions []MessageAction `json:"actions,omitempty"`
}

// Tombstoned reports whether the message was hard-deleted.
func (m *Message) Tombstoned() bool { return m.DeletedTS != 0 }

// Converted reports whether any attached action turned the message into a
// tracked entity (transaction or reminder); converted messages are not
// eligible for bulk deletion.
func (m *Message) Converted() bool {
	for _, a := range m.Actions {
		if a.Type.Converts() {
			return true
		}
	}
	return false
}
