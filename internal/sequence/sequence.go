package sequence

import (
	"context"
	"log/slog"
)

// Sequence is the root of one verification session. It owns the tree of
// declared steps and loops, is the active sequence of its scope until
// closed, and checks on Close that every declared node met its range.
//
// A Sequence is not safe for concurrent mutation. Goroutines that share one
// must do so through FlowMode with proper hand-off, so that calls are
// reported one at a time.
type Sequence struct {
	id      string
	root    *Loop
	mode    *ContextMode
	logger  *slog.Logger
	release func()
	closed  bool
	failed  bool
}

// Option configures a Sequence at creation.
type Option func(*options)

type options struct {
	ids    IDGenerator
	logger *slog.Logger
}

// WithIDGenerator sets how the sequence id is generated.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithLogger sets the logger for lifecycle and violation events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Create starts a sequence and makes it the active sequence of the current
// scope under the process-wide context mode. Callers must propagate the
// returned context (it matters in FlowMode) and must Close the sequence on
// every exit path:
//
//	ctx, seq, err := sequence.Create(ctx)
//	if err != nil {
//	    return err
//	}
//	defer seq.Close()
//
// Create fails with a *UsageError if the scope already has an active
// sequence.
func Create(ctx context.Context, opts ...Option) (context.Context, *Sequence, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := options{ids: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	modeMu.Lock()
	defer modeMu.Unlock()

	mode := Mode()
	if _, ok := mode.store.Load(ctx); ok {
		return ctx, nil, newUsageError(ErrCodeSequenceActive,
			"Cannot have more than one active sequence per %s.", mode.name)
	}

	s := &Sequence{
		id:     o.ids.Generate(),
		mode:   mode,
		logger: o.logger,
	}
	s.root = newRootLoop("sequence", AtMostOnce(), s.logger.With("sequence_id", s.id))

	ctx, s.release = mode.store.Save(ctx, s)
	openSequences.Add(1)

	s.logger.Debug("sequence created", "sequence_id", s.id, "mode", mode.name)
	return ctx, s, nil
}

// Active returns the active sequence of the current scope.
func Active(ctx context.Context) (*Sequence, bool) {
	return Mode().store.Load(ctx)
}

func active(ctx context.Context, operation string) (*Sequence, error) {
	s, ok := Active(ctx)
	if !ok {
		return nil, newUsageError(ErrCodeNoActiveSequence,
			"%s can only be called with an active sequence created with sequence.Create().", operation)
	}
	return s, nil
}

// OpenLoop opens a loop in the active sequence. It takes at most one Times;
// the default is AnyNumber. The loop must be closed before its parent.
func OpenLoop(ctx context.Context, times ...Times) (*Loop, error) {
	s, err := active(ctx, "Creating a loop")
	if err != nil {
		return nil, err
	}
	return s.OpenLoop(times...)
}

// DeclareStep adds a step to the innermost open loop of the active sequence.
func DeclareStep(ctx context.Context, label string, times Times) (*Step, error) {
	s, err := active(ctx, "Declaring a step")
	if err != nil {
		return nil, err
	}
	return s.DeclareStep(label, times)
}

// Report records one invocation of step in the active sequence.
func Report(ctx context.Context, step *Step) error {
	s, err := active(ctx, "Mock invocation")
	if err != nil {
		return err
	}
	return s.Report(step)
}

// ID returns the sequence id.
func (s *Sequence) ID() string { return s.id }

// ContextMode returns the mode the sequence was created under.
func (s *Sequence) ContextMode() *ContextMode { return s.mode }

// Closed reports whether Close has been called.
func (s *Sequence) Closed() bool { return s.closed }

// Failed reports whether Report has returned an error.
func (s *Sequence) Failed() bool { return s.failed }

// OpenLoop opens a loop under the innermost open loop of s.
func (s *Sequence) OpenLoop(times ...Times) (*Loop, error) {
	if s.closed {
		return nil, s.closedError("Creating a loop")
	}
	if len(times) > 1 {
		return nil, newUsageError(ErrCodeInvalidArgument,
			"OpenLoop takes at most one Times, got %d.", len(times))
	}
	t := AnyNumber()
	if len(times) == 1 {
		t = times[0]
	}
	return s.root.createLoop(t), nil
}

// DeclareStep adds a step under the innermost open loop of s. Declaration
// order is the expected call order.
func (s *Sequence) DeclareStep(label string, times Times) (*Step, error) {
	if s.closed {
		return nil, s.closedError("Declaring a step")
	}
	step := s.root.createStep(label, times)
	s.logger.Debug("step declared", "sequence_id", s.id, "step", label, "times", times.String())
	return step, nil
}

// Report records one invocation of step. It fails with a *Violation when
// the call is out of order, exceeds a range, or is not part of s. After a
// violation, Close skips its completeness check so the root cause is not
// reported twice.
func (s *Sequence) Report(step *Step) error {
	if s.closed {
		return s.closedError("Mock invocation")
	}
	if step == nil {
		return newUsageError(ErrCodeInvalidArgument, "Report requires a non-nil step.")
	}

	found, err := s.root.recordCall(step)
	if err == nil && !found {
		err = &Violation{
			Code:     ErrCodeUndeclared,
			Reason:   step.label + " was called but is not part of the active sequence.",
			Node:     step.label,
			Kind:     kindStep,
			Expected: step.times,
			Actual:   step.count,
		}
	}
	if err != nil {
		s.failed = true
		s.logger.Warn("sequence violation", "sequence_id", s.id, "step", step.label, "error", err)
		return err
	}

	s.logger.Debug("call recorded", "sequence_id", s.id, "step", step.label, "count", step.count)
	return nil
}

// Close ends the sequence and releases it as the active sequence. It is
// idempotent.
//
// Unless Report already failed, Close fails with a *UsageError if a loop is
// still open and with a *Violation if any declared node has not met its
// range.
func (s *Sequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()
	openSequences.Add(-1)

	s.logger.Debug("sequence closed", "sequence_id", s.id, "failed", s.failed)

	if s.failed {
		return nil
	}
	if err := s.root.checkNestedClosed(); err != nil {
		return err
	}
	if err := s.root.ensureComplete("At end of sequence"); err != nil {
		s.logger.Warn("sequence incomplete", "sequence_id", s.id, "error", err)
		return err
	}
	return nil
}

// Snapshot returns the current state of the whole tree.
func (s *Sequence) Snapshot() NodeSnapshot {
	snap := s.root.snapshot()
	snap.Kind = "sequence"
	snap.Closed = s.closed
	return snap
}

func (s *Sequence) closedError(operation string) error {
	return newUsageError(ErrCodeSequenceClosed, "%s is not allowed on closed sequence %s.", operation, s.id)
}
