package query

import (
	"errors"

	"hubsync/pkg/models"
)

// ErrIneligible is returned when a bulk action includes a message the
// rules exclude.
var ErrIneligible = errors.New("query: message not eligible for bulk action")

// EligibleForBulkDelete reports whether a single message may enter the
// multi-select set: converted messages (transaction/reminder actions) and
// already-deleted messages are excluded. Enforced both in selection
// toggles and in the select-all path so no entry point can bypass it.
func EligibleForBulkDelete(m models.Message) bool {
	return !m.Converted() && !m.Tombstoned() && len(m.Actions) == 0
}

// SelectableIDs implements the "select all" entry point: every message in
// the list that passes the eligibility rule.
func SelectableIDs(msgs []models.Message) []string {
	var ids []string
	for _, m := range msgs {
		if EligibleForBulkDelete(m) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// CanDeleteForEveryone reports whether "delete for everyone" may be
// offered for the selected set: the acting user must be the sender of
// every message and every message must be individually eligible. Anything
// less disables the action entirely; it is never silently partial.
func CanDeleteForEveryone(selected []models.Message, currentUserID string) bool {
	if len(selected) == 0 {
		return false
	}
	for _, m := range selected {
		if m.Sender != currentUserID || !EligibleForBulkDelete(m) {
			return false
		}
	}
	return true
}
