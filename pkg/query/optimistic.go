package query

import (
	"context"
)

// Mutation captures the optimistic-update-then-reconcile dance shared by
// hide/delete/undo style actions, so the snapshot/rollback steps are not
// duplicated per call site.
//
// Contract: Apply must return a new value and leave its input untouched;
// the input is the rollback snapshot.
type Mutation[T any] struct {
	// Read returns the current cached collection.
	Read func() T
	// Apply produces the optimistically mutated collection.
	Apply func(T) T
	// Write installs a collection as the current cached state.
	Write func(T)
	// Request performs the network mutation.
	Request func(ctx context.Context) error
	// OnError is invoked after rollback with the request error (toast
	// analog). Optional.
	OnError func(err error)
}

// Run applies m optimistically, issues the request, and on failure rolls
// the cache back to the pre-mutation snapshot. On success the optimistic
// state stays authoritative; no refetch is required.
func Run[T any](ctx context.Context, m Mutation[T]) error {
	prev := m.Read()
	m.Write(m.Apply(prev))
	if err := m.Request(ctx); err != nil {
		m.Write(prev)
		if m.OnError != nil {
			m.OnError(err)
		}
		return err
	}
	return nil
}
