package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"hubsync/pkg/models"
)

// TestRunSuccessKeepsOptimisticState verifies the optimistic value stays
// authoritative when the request succeeds.
func TestRunSuccessKeepsOptimisticState(t *testing.T) {
	state := []models.Message{{ID: "m1", Content: "hi"}}
	err := Run(context.Background(), Mutation[[]models.Message]{
		Read:  func() []models.Message { return state },
		Apply: func(in []models.Message) []models.Message { return SetHidden(in, []string{"m1"}, true) },
		Write: func(v []models.Message) { state = v },
		Request: func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	require.True(t, state[0].HiddenByMe)
}

// TestRunFailureRollsBack verifies a failed request restores the exact
// pre-mutation snapshot and reports through OnError.
func TestRunFailureRollsBack(t *testing.T) {
	boom := errors.New("hub rejected")
	state := []models.Message{{ID: "m1", Content: "hi"}, {ID: "m2", Content: "yo"}}
	notified := false
	err := Run(context.Background(), Mutation[[]models.Message]{
		Read:  func() []models.Message { return state },
		Apply: func(in []models.Message) []models.Message { return SetDeleted(in, []string{"m1", "m2"}, "u1", 99) },
		Write: func(v []models.Message) { state = v },
		Request: func(context.Context) error { return boom },
		OnError: func(err error) {
			notified = true
			require.ErrorIs(t, err, boom)
		},
	})
	require.ErrorIs(t, err, boom)
	require.True(t, notified)
	require.Equal(t, "hi", state[0].Content)
	require.Zero(t, state[0].DeletedTS)
	require.Zero(t, state[1].DeletedTS)
}

// TestMutateHelpersCopyOnWrite verifies the helpers never touch their
// input, which is what makes the rollback snapshot trustworthy.
func TestMutateHelpersCopyOnWrite(t *testing.T) {
	in := []models.Message{{ID: "m1", Content: "keep", Status: models.StatusSent}}

	_ = SetHidden(in, []string{"m1"}, true)
	_ = SetDeleted(in, []string{"m1"}, "u1", 7)
	_ = SetStatus(in, []string{"m1"}, models.StatusRead)
	_ = AppendMessage(in, models.Message{ID: "m2"})

	require.Equal(t, "keep", in[0].Content)
	require.False(t, in[0].HiddenByMe)
	require.Zero(t, in[0].DeletedTS)
	require.Equal(t, models.StatusSent, in[0].Status)
	require.Len(t, in, 1)
}

// TestSetStatusMonotonic verifies receipts can only move a message
// forwards.
func TestSetStatusMonotonic(t *testing.T) {
	in := []models.Message{{ID: "m1", Status: models.StatusRead}}
	out := SetStatus(in, []string{"m1"}, models.StatusDelivered)
	require.Equal(t, models.StatusRead, out[0].Status)

	out = SetStatus([]models.Message{{ID: "m1", Status: models.StatusSent}}, []string{"m1"}, models.StatusRead)
	require.Equal(t, models.StatusRead, out[0].Status)
}

func TestBumpThread(t *testing.T) {
	in := []models.Thread{{ID: "t1", UnreadCount: 2}}
	out := BumpThread(in, "t1", "new msg", 123, true)
	require.Equal(t, "new msg", out[0].LastMessage)
	require.Equal(t, int64(123), out[0].LastMessageTS)
	require.Equal(t, 3, out[0].UnreadCount)
	// viewer looking at the thread: preview moves, badge does not
	out = BumpThread(in, "t1", "seen msg", 124, false)
	require.Equal(t, 2, out[0].UnreadCount)
}

func TestZeroUnread(t *testing.T) {
	in := []models.Thread{{ID: "t1", UnreadCount: 5}, {ID: "t2", UnreadCount: 1}}
	out := ZeroUnread(in, "t1")
	require.Zero(t, out[0].UnreadCount)
	require.Equal(t, 1, out[1].UnreadCount)
	require.Equal(t, 5, in[0].UnreadCount)
}
