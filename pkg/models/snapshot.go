package models

// ThreadSnapshot is the full thread-list payload returned by the hub API
// and persisted as-is in the local cache (last writer wins).
type ThreadSnapshot struct {
	Threads       []Thread `json:"threads"`
	HouseholdID   string   `json:"household_id"`
	CurrentUserID string   `json:"current_user_id"`
}

// MessageSnapshot is a single thread's message page plus the unread state
// the server computed for the viewer at fetch time.
type MessageSnapshot struct {
	Messages      []Message       `json:"messages"`
	Thread        string          `json:"thread_id"`
	HouseholdID   string          `json:"household_id"`
	CurrentUserID string          `json:"current_user_id"`
	FirstUnreadID string          `json:"first_unread_message_id,omitempty"`
	UnreadCount   int             `json:"unread_count"`
	Actions       []MessageAction `json:"message_actions,omitempty"`
}

// AttachActions folds the side-band message_actions list into the messages
// they belong to. Messages keep any actions already present.
func (s *MessageSnapshot) AttachActions() {
	if len(s.Actions) == 0 {
		return
	}
	byMsg := make(map[string][]MessageAction, len(s.Actions))
	for _, a := range s.Actions {
		byMsg[a.MessageID] = append(byMsg[a.MessageID], a)
	}
	for i := range s.Messages {
		if acts, ok := byMsg[s.Messages[i].ID]; ok {
			s.Messages[i].Actions = append(s.Messages[i].Actions, acts...)
		}
	}
}
