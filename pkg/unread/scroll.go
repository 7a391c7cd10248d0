package unread

// ScrollKind describes how the view should move after a render.
type ScrollKind int

const (
	// ScrollNone: leave the viewport where it is.
	ScrollNone ScrollKind = iota
	// ScrollCenterFirstUnread: jump instantly, centering the first unread
	// message (no animation).
	ScrollCenterFirstUnread
	// ScrollBottomInstant: jump instantly to the newest message.
	ScrollBottomInstant
	// ScrollBottomSmooth: animate to the newest message (live arrivals).
	ScrollBottomSmooth
)

func (k ScrollKind) String() string {
	switch k {
	case ScrollCenterFirstUnread:
		return "center_first_unread"
	case ScrollBottomInstant:
		return "bottom_instant"
	case ScrollBottomSmooth:
		return "bottom_smooth"
	default:
		return "none"
	}
}

// ScrollDirective is the engine's instruction to the view layer.
type ScrollDirective struct {
	Kind     ScrollKind
	TargetID string // message id for ScrollCenterFirstUnread
}

// PlanScroll decides the scroll for a render showing messageCount
// messages. The first successful render with messages anchors either on
// the first unread message (centered, instant) or the bottom (instant);
// later message-count growth yields a smooth scroll to bottom and never
// disturbs the initial anchor.
func (e *Engine) PlanScroll(messageCount int) ScrollDirective {
	e.mu.Lock()
	defer e.mu.Unlock()
	if messageCount == 0 {
		return ScrollDirective{Kind: ScrollNone}
	}
	if !e.rendered {
		e.rendered = true
		e.lastCount = messageCount
		if e.snap.FirstUnreadID != "" {
			return ScrollDirective{Kind: ScrollCenterFirstUnread, TargetID: e.snap.FirstUnreadID}
		}
		return ScrollDirective{Kind: ScrollBottomInstant}
	}
	if messageCount > e.lastCount {
		e.lastCount = messageCount
		return ScrollDirective{Kind: ScrollBottomSmooth}
	}
	return ScrollDirective{Kind: ScrollNone}
}
