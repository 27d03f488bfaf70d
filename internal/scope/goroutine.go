package scope

import (
	"context"
	"sync"

	"github.com/petermattis/goid"
)

// GoroutineStore keeps one value per goroutine.
//
// The context passed to Save is returned unchanged: visibility is decided by
// the goroutine id alone, so a value saved on one goroutine is invisible to
// every other goroutine.
//
// Thread-safety: GoroutineStore is safe for concurrent use.
type GoroutineStore[T any] struct {
	mu     sync.Mutex
	values map[int64]*goroutineEntry[T]
}

type goroutineEntry[T any] struct {
	value T
}

// NewGoroutineStore creates an empty goroutine-scoped store.
func NewGoroutineStore[T any]() *GoroutineStore[T] {
	return &GoroutineStore[T]{values: make(map[int64]*goroutineEntry[T])}
}

// Load returns the value saved by the calling goroutine.
func (s *GoroutineStore[T]) Load(_ context.Context) (T, bool) {
	id := goid.Get()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.values[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Save stores v for the calling goroutine, replacing any previous value.
//
// The release function removes the entry only if it is still the one this
// call created, so a stale release cannot clear a newer value.
func (s *GoroutineStore[T]) Save(ctx context.Context, v T) (context.Context, func()) {
	id := goid.Get()
	e := &goroutineEntry[T]{value: v}

	s.mu.Lock()
	s.values[id] = e
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.values[id] == e {
			delete(s.values, id)
		}
	}
	return ctx, release
}

// Len reports how many goroutines currently hold a value.
func (s *GoroutineStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}
