package sequence

import (
	"context"
	"errors"
)

// Run creates a sequence, calls fn with the context that carries it, and
// closes the sequence on every exit path, including a panic in fn. The
// returned error joins fn's error with Close's.
//
//	err := sequence.Run(ctx, func(ctx context.Context) error {
//	    first, _ := sequence.DeclareStep(ctx, "first", sequence.Once())
//	    ...
//	    return sequence.Report(ctx, first)
//	})
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) (err error) {
	ctx, s, err := Create(ctx, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(ctx)
}

// WithLoop opens a loop in the active sequence, calls fn, and closes the
// loop on every exit path. Steps declared inside fn belong to the loop.
func WithLoop(ctx context.Context, times Times, fn func() error) (err error) {
	loop, err := OpenLoop(ctx, times)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, loop.Close())
	}()
	return fn()
}
