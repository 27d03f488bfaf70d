// Package scope stores at most one value per execution scope.
//
// Two storage policies are provided:
//
//   - GoroutineStore pins the value to the goroutine that saved it. Other
//     goroutines never see it, even when they share a context.Context.
//   - FlowStore carries the value inside a context.Context. Any code handed
//     the derived context observes it, including goroutines spawned from it
//     and work resumed elsewhere. Contexts derived before the save do not.
//
// Both return a release function from Save. Calling it clears the value for
// every holder of the scope; calling it again is a no-op.
//
//	var store scope.Store[*Session] = scope.NewFlowStore[*Session]("session")
//	ctx, release := store.Save(ctx, session)
//	defer release()
//
//	go func() {
//	    s, ok := store.Load(ctx) // same session, different goroutine
//	}()
package scope

import "context"

// Store holds at most one value of type T per execution scope.
type Store[T any] interface {
	// Load returns the value visible from ctx and the calling goroutine.
	Load(ctx context.Context) (T, bool)

	// Save makes v visible in the current scope and returns the context
	// callers must propagate, plus a function that clears the value.
	Save(ctx context.Context, v T) (context.Context, func())
}
