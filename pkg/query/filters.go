package query

import (
	"strings"

	"hubsync/pkg/models"
)

// Visibility narrows the thread list by privacy.
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ThreadFilter holds the client-side thread list filters; the server
// returns the superset.
type ThreadFilter struct {
	Purpose    models.Purpose // empty = any
	Visibility Visibility
	Search     string // free text over title and last-message preview
	// IncludeDeleted shows soft-deleted threads (the undo list).
	IncludeDeleted bool
}

// FilterThreads applies f to in and returns a new slice.
func FilterThreads(in []models.Thread, f ThreadFilter) []models.Thread {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Thread, 0, len(in))
	for _, t := range in {
		if t.Deleted && !f.IncludeDeleted {
			continue
		}
		if f.Purpose != "" && t.Purpose != f.Purpose {
			continue
		}
		switch f.Visibility {
		case VisibilityPublic:
			if t.Private {
				continue
			}
		case VisibilityPrivate:
			if !t.Private {
				continue
			}
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.LastMessage), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// MessageFilter holds the in-thread filters.
type MessageFilter struct {
	Search string // free text over content
	// HideConverted hides messages already carrying a converting action
	// (the "show completed actions" toggle, off).
	HideConverted bool
}

// FilterMessages applies f and drops messages hidden by the viewer.
// Tombstoned messages stay visible as tombstones; their content is
// not searchable.
func FilterMessages(in []models.Message, f MessageFilter) []models.Message {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Message, 0, len(in))
	for _, m := range in {
		if m.HiddenByMe {
			continue
		}
		if f.HideConverted && m.Converted() {
			continue
		}
		if needle != "" {
			if m.Tombstoned() || !strings.Contains(strings.ToLower(m.Content), needle) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}
