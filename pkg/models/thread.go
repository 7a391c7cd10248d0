package models

// Purpose classifies what a hub thread is about. The set is closed;
// unknown values fail Valid() and should be rejected at the edges.
type Purpose string

const (
	PurposeGeneral  Purpose = "general"
	PurposeBudget   Purpose = "budget"
	PurposeReminder Purpose = "reminder"
	PurposeShopping Purpose = "shopping"
	PurposeTravel   Purpose = "travel"
	PurposeHealth   Purpose = "health"
	PurposeNotes    Purpose = "notes"
	PurposeOther    Purpose = "other"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeGeneral, PurposeBudget, PurposeReminder, PurposeShopping,
		PurposeTravel, PurposeHealth, PurposeNotes, PurposeOther:
		return true
	}
	return false
}

type Thread struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Purpose Purpose `json:"purpose,omitempty"`
	// Private threads are visible only to their creator within the household.
	Private bool   `json:"is_private,omitempty"`
	Color   string `json:"color,omitempty"`
	Icon    string `json:"icon,omitempty"`
	// LastMessage is a denormalized preview of the newest message.
	LastMessage string `json:"last_message,omitempty"`
	// LastMessageTS is the newest message timestamp (ns)
	LastMessageTS int64 `json:"last_message_at,omitempty"`
	// UnreadCount is the server-computed unread badge for the viewer.
	UnreadCount int `json:"unread_count"`
	// Deleted marks a thread as soft-deleted; DeletedTS records deletion
	// time (ns). Soft-deleted threads stay recoverable for the undo window.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}
