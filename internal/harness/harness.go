package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dwhelan/sequences/internal/sequence"
)

// Harness replays one scenario against a fresh sequence.
type Harness struct {
	scenario *Scenario
	mode     *sequence.ContextMode
	steps    map[string]*sequence.Step
	logger   *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger passed to the sequence. By default logs are
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMode overrides the scenario's context mode.
func WithMode(m *sequence.ContextMode) Option {
	return func(h *Harness) {
		if m != nil {
			h.mode = m
		}
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Validate the scenario
//  2. Switch to the scenario's context mode (restored afterwards)
//  3. Create a sequence with a fixed id
//  4. Declare the scenario's steps and loops
//  5. Replay calls until one fails
//  6. Close the sequence and evaluate the expectation
//
// Verification failures are reported in the result. The returned error is
// reserved for scenarios that cannot be executed at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := newHarness(scenario, opts)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = h.session(func(ctx context.Context, seq *sequence.Sequence) error {
		result = NewResult(scenario.Name, seq.ID())
		h.replay(ctx, result)

		if err := seq.Close(); err != nil {
			result.AddError(0, err)
		}
		result.Verified = len(result.Errors) == 0
		result.Snapshot = seq.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Mismatches = Evaluate(result, scenario.Expect)
	result.Pass = len(result.Mismatches) == 0

	h.logger.Info("scenario executed",
		"scenario", scenario.Name,
		"mode", h.mode.Name(),
		"calls", len(result.Trace),
		"verified", result.Verified,
		"pass", result.Pass)

	return result, nil
}

// Shape declares the scenario's sequence without replaying any call and
// returns the declared tree.
func Shape(scenario *Scenario, opts ...Option) (sequence.NodeSnapshot, error) {
	h, err := newHarness(scenario, opts)
	if err != nil {
		return sequence.NodeSnapshot{}, err
	}

	var snap sequence.NodeSnapshot
	err = h.session(func(_ context.Context, seq *sequence.Sequence) error {
		snap = seq.Snapshot()
		return nil
	})
	return snap, err
}

func newHarness(scenario *Scenario, opts []Option) (*Harness, error) {
	if err := Validate(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		mode:     sequence.Mode(),
		steps:    make(map[string]*sequence.Step),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs by default
	}
	if scenario.Mode != "" {
		m, err := sequence.ParseMode(scenario.Mode)
		if err != nil {
			return nil, fmt.Errorf("invalid mode: %w", err)
		}
		h.mode = m
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// session switches to the harness mode, creates a sequence with the
// scenario's fixed id, declares the scenario shape, and calls fn. The
// sequence is closed and the previous mode restored when fn returns.
func (h *Harness) session(fn func(ctx context.Context, seq *sequence.Sequence) error) error {
	if prev := sequence.Mode(); prev != h.mode {
		if err := sequence.SetMode(h.mode); err != nil {
			return fmt.Errorf("failed to switch context mode: %w", err)
		}
		defer func() {
			if err := sequence.SetMode(prev); err != nil {
				h.logger.Error("failed to restore context mode", "mode", prev.Name(), "error", err)
			}
		}()
	}

	id := h.scenario.SequenceID
	if id == "" {
		id = DefaultSequenceID
	}

	ctx, seq, err := sequence.Create(context.Background(),
		sequence.WithIDGenerator(sequence.NewFixedGenerator(id)),
		sequence.WithLogger(h.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}
	defer seq.Close()

	if err := h.declare(ctx, h.scenario.Sequence); err != nil {
		return fmt.Errorf("failed to declare sequence: %w", err)
	}
	return fn(ctx, seq)
}

// declare builds nodes under the innermost open loop of the sequence.
func (h *Harness) declare(ctx context.Context, nodes []Node) error {
	for _, n := range nodes {
		if n.Loop != nil {
			times, err := n.Loop.Times.Times(sequence.AnyNumber())
			if err != nil {
				return err
			}
			body := n.Loop.Body
			if err := sequence.WithLoop(ctx, times, func() error {
				return h.declare(ctx, body)
			}); err != nil {
				return err
			}
			continue
		}

		times, err := n.Times.Times(sequence.Once())
		if err != nil {
			return err
		}
		step, err := sequence.DeclareStep(ctx, n.Step, times)
		if err != nil {
			return err
		}
		h.steps[n.Step] = step
	}
	return nil
}

// replay reports each call in order and stops at the first error, as a
// test would when a mocked call fails.
func (h *Harness) replay(ctx context.Context, result *Result) {
	for i, label := range h.scenario.Calls {
		err := h.report(ctx, h.steps[label])
		result.AddCall(label, err)
		if err != nil {
			result.AddError(i+1, err)
			return
		}
	}
}

// report records one call. In flow mode the call runs on its own goroutine
// carrying ctx, the way work resumes after an await.
func (h *Harness) report(ctx context.Context, step *sequence.Step) error {
	if h.mode != sequence.FlowMode {
		return sequence.Report(ctx, step)
	}
	done := make(chan error, 1)
	go func() {
		done <- sequence.Report(ctx, step)
	}()
	return <-done
}

// Evaluate compares a result against an expectation and returns one message
// per mismatch. A nil expectation requires the sequence to verify.
func Evaluate(result *Result, expect *Expectation) []string {
	if expect == nil {
		expect = &Expectation{Pass: true}
	}

	var mismatches []string
	first, failed := result.FirstError()

	if expect.Pass {
		if failed {
			mismatches = append(mismatches,
				fmt.Sprintf("expected sequence to verify, got %s: %s", first.Code, firstLine(first.Message)))
		}
		return mismatches
	}

	if !failed {
		return append(mismatches, "expected verification to fail, but it passed")
	}
	if expect.Code != "" && expect.Code != first.Code {
		mismatches = append(mismatches,
			fmt.Sprintf("expected error code %s, got %s", expect.Code, first.Code))
	}
	if expect.MessageContains != "" && !strings.Contains(first.Message, expect.MessageContains) {
		mismatches = append(mismatches,
			fmt.Sprintf("expected error message to contain %q, got %q", expect.MessageContains, firstLine(first.Message)))
	}
	return mismatches
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
