// Package mocksequence connects test doubles to sequence verification.
//
// InSequence attaches a step to a testify mock expectation, so that every
// matching invocation is reported to the active sequence:
//
//	ctx, seq, _ := sequence.Create(context.Background())
//	defer func() { require.NoError(t, seq.Close()) }()
//
//	mocksequence.InSequence(ctx, t, store.On("Open", mock.Anything))
//	mocksequence.InSequence(ctx, t, store.On("Write", mock.Anything, mock.Anything), sequence.AtLeastOnce())
//	mocksequence.InSequence(ctx, t, store.On("Close", mock.Anything))
//
// Hand-written fakes use Expect instead and call the returned hook from the
// faked method.
package mocksequence

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dwhelan/sequences/internal/sequence"
)

// TestReporter is the subset of testing.TB used to report violations.
type TestReporter interface {
	Helper()
	Errorf(format string, args ...any)
}

// InSequence declares a step for call in the active sequence of ctx and
// chains a Run hook that reports the step on each invocation. The step is
// labelled with the mocked method name and defaults to Once.
//
// The invocation's first argument is used as the reporting context when it
// is a context.Context, so that in FlowMode the report follows the caller.
// Otherwise the declaration context is used. Violations fail t through
// Errorf; the mocked call still returns its configured values.
//
// A previously set Run function still runs, after the report. The report is
// itself the call's Run function, so calling Run on the returned call
// replaces it and the step is never reported again. Add side effects after
// InSequence with this package's Run instead:
//
//	mocksequence.Run(mocksequence.InSequence(ctx, t, store.On("Close")), func(mock.Arguments) { ... })
func InSequence(ctx context.Context, t TestReporter, call *mock.Call, times ...sequence.Times) *mock.Call {
	t.Helper()

	step, err := declare(ctx, call.Method, times)
	if err != nil {
		t.Errorf("mocksequence: %s: %v", call.Method, err)
		return call
	}

	next := call.RunFn
	return call.Run(func(args mock.Arguments) {
		if err := sequence.Report(invocationContext(ctx, args), step); err != nil {
			t.Errorf("mocksequence: %v", err)
		}
		if next != nil {
			next(args)
		}
	})
}

// Run adds fn to the call's Run function instead of replacing it: the
// existing function, such as the report installed by InSequence, runs
// first and fn after it.
func Run(call *mock.Call, fn func(args mock.Arguments)) *mock.Call {
	prev := call.RunFn
	if prev == nil {
		return call.Run(fn)
	}
	return call.Run(func(args mock.Arguments) {
		prev(args)
		fn(args)
	})
}

// Expect declares a step labelled label in the active sequence of ctx and
// returns a hook that reports it. Passing a nil context to the hook uses
// the declaration context.
//
//	type fakeClock struct{ tick func(context.Context) }
//
//	func (f *fakeClock) Tick(ctx context.Context) { f.tick(ctx) }
//
//	clock := &fakeClock{tick: mocksequence.Expect(ctx, t, "tick", sequence.Exactly(3))}
func Expect(ctx context.Context, t TestReporter, label string, times ...sequence.Times) func(context.Context) {
	t.Helper()

	step, err := declare(ctx, label, times)
	if err != nil {
		t.Errorf("mocksequence: %s: %v", label, err)
		return func(context.Context) {}
	}

	return func(callCtx context.Context) {
		if callCtx == nil {
			callCtx = ctx
		}
		if err := sequence.Report(callCtx, step); err != nil {
			t.Errorf("mocksequence: %v", err)
		}
	}
}

func declare(ctx context.Context, label string, times []sequence.Times) (*sequence.Step, error) {
	t := sequence.Once()
	if len(times) > 0 {
		t = times[0]
	}
	return sequence.DeclareStep(ctx, label, t)
}

func invocationContext(fallback context.Context, args mock.Arguments) context.Context {
	if len(args) > 0 {
		if ctx, ok := args[0].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return fallback
}
