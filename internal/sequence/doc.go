// Package sequence verifies that mocked calls happen in a declared order,
// including repeated groups of calls with minimum and maximum counts.
//
// # Model
//
// A Sequence is a tree. Leaves are steps: one expected behaviour with a
// Times range. Inner nodes are loops: an ordered group of steps and nested
// loops that repeats within its own Times range. The Sequence itself is the
// root loop and runs at most once.
//
// Declaration order is the expected call order. New steps and loops attach
// to the innermost loop that is still open, so nesting follows the order in
// which loops are opened and closed:
//
//	ctx, seq, err := sequence.Create(ctx)
//	if err != nil {
//	    return err
//	}
//	defer seq.Close()
//
//	login, _ := sequence.DeclareStep(ctx, "login", sequence.Once())
//	loop, _ := sequence.OpenLoop(ctx, sequence.Exactly(2))
//	fetch, _ := sequence.DeclareStep(ctx, "fetch", sequence.Once())
//	loop.Close()
//	logout, _ := sequence.DeclareStep(ctx, "logout", sequence.Once())
//
// # Recording
//
// Report records that a step was actually invoked. Walking to the step,
// every earlier node must already satisfy its range; otherwise the call is
// out of order and Report returns a *Violation. A call of an already
// completed step inside a loop starts the loop's next pass. Close asserts
// that every node met its range, unless a violation was already reported.
//
// # Context modes
//
// The active sequence is found through the process-wide ContextMode:
//
//   - GoroutineMode (default): the sequence is visible only on the goroutine
//     that created it.
//   - FlowMode: the sequence travels in the context.Context returned by
//     Create, across goroutines and into derived contexts.
//
// # Errors
//
// *Violation reports recorded behaviour that disagrees with the declared
// shape. *UsageError reports structural misuse, such as a second sequence in
// the same scope or closing a loop while a nested loop is open. Neither is
// meant to be retried.
package sequence
