package sequence

import (
	"fmt"
	"io"
	"log/slog"
)

// tree is the state shared by every loop of one sequence. open is the stack
// of loops that have been created and not yet closed; its top is where new
// steps and loops attach.
type tree struct {
	root   *Loop
	open   []*Loop
	loops  int
	logger *slog.Logger
}

func (t *tree) top() *Loop {
	if len(t.open) == 0 {
		return t.root
	}
	return t.open[len(t.open)-1]
}

// pop removes l and everything opened after it from the open stack.
func (t *tree) pop(l *Loop) {
	for i := len(t.open) - 1; i >= 0; i-- {
		if t.open[i] == l {
			t.open = t.open[:i]
			return
		}
	}
}

// Loop is a repeatable, ordered group of steps and nested loops. The loop
// as a whole is bound by its own Times: each pass through it counts as one
// occurrence.
//
// Loops are opened with OpenLoop and must be closed innermost-first.
type Loop struct {
	counter
	tree     *tree
	children []node
	closed   bool
}

// newRootLoop creates a loop that owns a fresh tree.
func newRootLoop(label string, times Times, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	l := &Loop{counter: counter{times: times, label: label, kind: kindLoop}}
	l.tree = &tree{root: l, logger: logger}
	return l
}

// createLoop attaches a new loop under the innermost open loop.
func (l *Loop) createLoop(times Times) *Loop {
	t := l.tree
	t.loops++
	child := &Loop{
		counter: counter{times: times, label: fmt.Sprintf("loop #%d", t.loops), kind: kindLoop},
		tree:    t,
	}
	parent := t.top()
	parent.children = append(parent.children, child)
	t.open = append(t.open, child)

	t.logger.Debug("loop opened",
		"loop", child.label,
		"parent", parent.label,
		"times", times.String(),
	)
	return child
}

// createStep attaches a new step under the innermost open loop.
func (l *Loop) createStep(label string, times Times) *Step {
	step := newStep(label, times)
	parent := l.tree.top()
	parent.children = append(parent.children, step)
	return step
}

// recordCall walks the children in declaration order looking for target.
// Every child passed on the way must already satisfy its range, which is
// what turns an out-of-order call into a violation.
//
// It returns false with a nil error when target is not in this loop.
func (l *Loop) recordCall(target node) (bool, error) {
	for _, child := range l.children {
		if child == target {
			return true, l.countCallOn(target)
		}

		if sub, ok := child.(*Loop); ok {
			found, err := sub.recordCall(target)
			if err != nil {
				return false, err
			}
			if found {
				return true, nil
			}
		}

		if err := child.ensureComplete(fmt.Sprintf("%s was called", target)); err != nil {
			return false, err
		}
	}
	return false, nil
}

// countCallOn records a call of a direct child. A call that enters the loop
// (first call, or a call of an already completed child) starts a new pass:
// the children are reset and the loop's own count goes up.
func (l *Loop) countCallOn(target node) error {
	if !l.entering(target) {
		return target.countCall()
	}

	if l.started() {
		l.resetChildren()
		l.tree.logger.Debug("loop pass restarted", "loop", l.label, "pass", l.count+1)
	}
	if err := target.countCall(); err != nil {
		return err
	}
	return l.countCall()
}

func (l *Loop) entering(target node) bool {
	return !l.started() || target.complete()
}

// ensureComplete requires every child to be complete before checking the
// loop's own pass count, so the deepest failure surfaces first.
func (l *Loop) ensureComplete(context string) error {
	for _, child := range l.children {
		if err := child.ensureComplete(context); err != nil {
			return err
		}
	}
	return l.counter.ensureComplete(context)
}

func (l *Loop) reset() {
	l.resetChildren()
	l.counter.reset()
}

func (l *Loop) resetChildren() {
	for _, child := range l.children {
		child.reset()
	}
}

// Close marks the loop closed so later declarations attach to its parent.
// It is idempotent. It fails with a *UsageError if a nested loop is still
// open.
func (l *Loop) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.tree.pop(l)
	l.tree.logger.Debug("loop closed", "loop", l.label)

	return l.checkNestedClosed()
}

func (l *Loop) checkNestedClosed() error {
	for _, child := range l.children {
		sub, ok := child.(*Loop)
		if !ok {
			continue
		}
		if !sub.closed {
			return newUsageError(ErrCodeLoopNotClosed,
				"You must close %s created via sequence.OpenLoop() before closing %s.", sub.label, l.label)
		}
		if err := sub.checkNestedClosed(); err != nil {
			return err
		}
	}
	return nil
}

// Label returns the loop's diagnostic name, e.g. "loop #2".
func (l *Loop) Label() string { return l.label }

// Times returns the declared pass range.
func (l *Loop) Times() Times { return l.times }

// Count returns the number of passes recorded so far.
func (l *Loop) Count() int { return l.count }

// Complete reports whether the loop has been asserted complete.
func (l *Loop) Complete() bool { return l.done }

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool { return l.closed }

// Len returns the number of direct children.
func (l *Loop) Len() int { return len(l.children) }

// String implements fmt.Stringer.
func (l *Loop) String() string { return l.label }

func (l *Loop) snapshot() NodeSnapshot {
	snap := NodeSnapshot{
		Kind:     kindLoop,
		Label:    l.label,
		Times:    l.times.String(),
		Count:    l.count,
		Complete: l.done,
		Closed:   l.closed,
	}
	for _, child := range l.children {
		snap.Children = append(snap.Children, child.snapshot())
	}
	return snap
}
