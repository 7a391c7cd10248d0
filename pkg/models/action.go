package models

// ActionType is the closed set of actions a message can carry.
type ActionType string

const (
	ActionTransaction ActionType = "transaction"
	ActionReminder    ActionType = "reminder"
	ActionForward     ActionType = "forward"
	ActionPin         ActionType = "pin"
)

type MessageAction struct {
	ID        string     `json:"id"`
	MessageID string     `json:"message_id"`
	Type      ActionType `json:"action_type"`
}

// ActionMeta drives presentation (label, icon, color) for an action type.
type ActionMeta struct {
	Label string
	Icon  string
	Color string
}

// actionMeta is the exhaustive mapping for every ActionType. There is no
// string-keyed fallback: Meta returns ok=false for anything not listed so
// a missing case surfaces as a bug instead of a silent default.
var actionMeta = map[ActionType]ActionMeta{
	ActionTransaction: {Label: "Transaction", Icon: "receipt", Color: "#16a34a"},
	ActionReminder:    {Label: "Reminder", Icon: "bell", Color: "#f59e0b"},
	ActionForward:     {Label: "Forwarded", Icon: "share", Color: "#3b82f6"},
	ActionPin:         {Label: "Pinned", Icon: "pin", Color: "#8b5cf6"},
}

func (t ActionType) Valid() bool {
	_, ok := actionMeta[t]
	return ok
}

func (t ActionType) Meta() (ActionMeta, bool) {
	m, ok := actionMeta[t]
	return m, ok
}

// Converts reports whether the action marks the message as converted into
// a standalone entity.
func (t ActionType) Converts() bool {
	return t == ActionTransaction || t == ActionReminder
}
