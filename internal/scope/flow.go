package scope

import (
	"context"
	"sync/atomic"
)

// FlowStore keeps its value inside a context.Context.
//
// The value follows the logical flow: whoever receives the context returned
// by Save sees it, on any goroutine. Contexts that branched off before the
// Save never see it, which gives copy-on-fork semantics.
//
// Thread-safety: FlowStore is safe for concurrent use.
type FlowStore[T any] struct {
	// name keeps the struct non-zero-sized so every store has a distinct
	// address, which is what keys the context value.
	name string
}

type flowCell[T any] struct {
	value    T
	released atomic.Bool
}

// NewFlowStore creates a flow-scoped store. The name only appears in String.
func NewFlowStore[T any](name string) *FlowStore[T] {
	return &FlowStore[T]{name: name}
}

// String implements fmt.Stringer.
func (s *FlowStore[T]) String() string {
	return "scope.FlowStore(" + s.name + ")"
}

// Load returns the value carried by ctx, unless it has been released.
func (s *FlowStore[T]) Load(ctx context.Context) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	c, ok := ctx.Value(s).(*flowCell[T])
	if !ok || c.released.Load() {
		return zero, false
	}
	return c.value, true
}

// Save returns a child of ctx carrying v.
func (s *FlowStore[T]) Save(ctx context.Context, v T) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &flowCell[T]{value: v}
	return context.WithValue(ctx, s, c), func() { c.released.Store(true) }
}
