package query

import (
	"hubsync/pkg/models"
)

// Copy-on-write helpers for optimistic list mutations. Every function
// returns a fresh slice and leaves its input untouched so the caller's
// pre-mutation snapshot stays valid for rollback.

func idSet(ids []string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// SetHidden marks the given messages hidden (or unhidden) for the viewer.
func SetHidden(in []models.Message, ids []string, hidden bool) []models.Message {
	set := idSet(ids)
	out := make([]models.Message, len(in))
	copy(out, in)
	for i := range out {
		if _, ok := set[out[i].ID]; ok {
			out[i].HiddenByMe = hidden
		}
	}
	return out
}

// SetDeleted tombstones the given messages as deleted by userID at ts.
func SetDeleted(in []models.Message, ids []string, userID string, ts int64) []models.Message {
	set := idSet(ids)
	out := make([]models.Message, len(in))
	copy(out, in)
	for i := range out {
		if _, ok := set[out[i].ID]; ok {
			out[i].DeletedTS = ts
			out[i].DeletedBy = userID
			out[i].Content = ""
		}
	}
	return out
}

// SetStatus upgrades the status of the given messages; downgrades are
// ignored so duplicate or out-of-order receipts are harmless.
func SetStatus(in []models.Message, ids []string, status models.MessageStatus) []models.Message {
	set := idSet(ids)
	out := make([]models.Message, len(in))
	copy(out, in)
	for i := range out {
		if _, ok := set[out[i].ID]; ok {
			out[i].Status = out[i].Status.Upgrade(status)
		}
	}
	return out
}

// AppendMessage appends m to a copy of in.
func AppendMessage(in []models.Message, m models.Message) []models.Message {
	out := make([]models.Message, len(in), len(in)+1)
	copy(out, in)
	return append(out, m)
}

// BumpThread updates a thread's denormalized last-message preview in a
// copy of the list, incrementing the unread badge when the viewer is not
// looking at that thread.
func BumpThread(in []models.Thread, threadID, preview string, ts int64, countUnread bool) []models.Thread {
	out := make([]models.Thread, len(in))
	copy(out, in)
	for i := range out {
		if out[i].ID != threadID {
			continue
		}
		out[i].LastMessage = preview
		out[i].LastMessageTS = ts
		if countUnread {
			out[i].UnreadCount++
		}
	}
	return out
}

// ZeroUnread zeroes a thread's unread badge in a copy of the list.
func ZeroUnread(in []models.Thread, threadID string) []models.Thread {
	out := make([]models.Thread, len(in))
	copy(out, in)
	for i := range out {
		if out[i].ID == threadID {
			out[i].UnreadCount = 0
		}
	}
	return out
}
