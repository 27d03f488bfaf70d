package sequence

import "fmt"

const (
	kindStep = "step"
	kindLoop = "loop"
)

// node is a position in a sequence tree: a *Step or a *Loop.
type node interface {
	countCall() error
	ensureComplete(context string) error
	reset()
	started() bool
	complete() bool
	snapshot() NodeSnapshot
	String() string
}

// counter tracks calls against a declared range. It is shared by steps and
// loops; a loop counts one call per pass.
type counter struct {
	times Times
	label string
	kind  string
	count int
	done  bool
}

func (c *counter) started() bool  { return c.count > 0 }
func (c *counter) complete() bool { return c.done }

// countCall records one call. Reaching max does not complete the counter;
// only ensureComplete does.
func (c *counter) countCall() error {
	if c.done {
		return &Violation{
			Code:     ErrCodeAlreadyComplete,
			Reason:   fmt.Sprintf("%s is not invokable because it has already completed.", c.label),
			Node:     c.label,
			Kind:     c.kind,
			Expected: c.times,
			Actual:   c.count,
		}
	}
	c.count++
	if c.count > c.times.max {
		return c.violation(ErrCodeMaxExceeded, "Exceeded maximum number of invocations.")
	}
	return nil
}

// ensureComplete marks the counter complete if its count is within range.
func (c *counter) ensureComplete(context string) error {
	if !c.times.Allows(c.count) {
		return c.violation(ErrCodeIncomplete,
			fmt.Sprintf("%s but invocations for %s were not completed.", context, c.label))
	}
	c.done = true
	return nil
}

func (c *counter) reset() {
	c.count = 0
	c.done = false
}

func (c *counter) violation(code ViolationCode, reason string) *Violation {
	return &Violation{
		Code:     code,
		Reason:   reason,
		Node:     c.label,
		Kind:     c.kind,
		Expected: c.times,
		Actual:   c.count,
	}
}

// Step is a single expected invocation with a call-count range. Steps are
// created by DeclareStep and passed back to Report each time the real call
// happens.
type Step struct {
	counter
}

func newStep(label string, times Times) *Step {
	return &Step{counter: counter{times: times, label: label, kind: kindStep}}
}

// Label returns the description the step was declared with.
func (s *Step) Label() string { return s.label }

// Times returns the declared range.
func (s *Step) Times() Times { return s.times }

// Count returns the calls recorded in the current pass.
func (s *Step) Count() int { return s.count }

// Started reports whether the step has been called in the current pass.
func (s *Step) Started() bool { return s.started() }

// Complete reports whether the step has been asserted complete.
func (s *Step) Complete() bool { return s.done }

// String implements fmt.Stringer.
func (s *Step) String() string { return s.label }

func (s *Step) snapshot() NodeSnapshot {
	return NodeSnapshot{
		Kind:     kindStep,
		Label:    s.label,
		Times:    s.times.String(),
		Count:    s.count,
		Complete: s.done,
	}
}
