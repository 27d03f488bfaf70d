package sequence

import (
	"fmt"
	"math"
)

// Times is an inclusive [min, max] bound on how often a step is invoked or
// a loop is executed.
//
// The zero value means "never".
type Times struct {
	min  int
	max  int
	desc string
}

// Unbounded is the max of ranges without an upper limit.
const Unbounded = math.MaxInt

// Once expects exactly one occurrence. It is the default for steps.
func Once() Times { return Times{min: 1, max: 1, desc: "once"} }

// Never expects no occurrence at all.
func Never() Times { return Times{min: 0, max: 0, desc: "never"} }

// AtMostOnce allows zero or one occurrence. It is the range of a Sequence.
func AtMostOnce() Times { return Times{min: 0, max: 1, desc: "at most once"} }

// AtLeastOnce expects one or more occurrences.
func AtLeastOnce() Times { return Times{min: 1, max: Unbounded, desc: "at least once"} }

// AnyNumber allows zero or more occurrences. It is the default for loops.
func AnyNumber() Times { return Times{min: 0, max: Unbounded, desc: "any number of times"} }

// Exactly expects n occurrences. It panics if n is negative.
func Exactly(n int) Times {
	mustBeValid(n, n)
	return Times{min: n, max: n, desc: fmt.Sprintf("exactly %d times", n)}
}

// AtLeast expects n or more occurrences. It panics if n is negative.
func AtLeast(n int) Times {
	mustBeValid(n, Unbounded)
	return Times{min: n, max: Unbounded, desc: fmt.Sprintf("at least %d times", n)}
}

// AtMost allows up to n occurrences. It panics if n is negative.
func AtMost(n int) Times {
	mustBeValid(0, n)
	return Times{min: 0, max: n, desc: fmt.Sprintf("at most %d times", n)}
}

// Between expects between min and max occurrences, both inclusive.
// It panics unless 0 <= min <= max.
func Between(min, max int) Times {
	mustBeValid(min, max)
	return Times{min: min, max: max, desc: fmt.Sprintf("between %d and %d times (inclusive)", min, max)}
}

func mustBeValid(min, max int) {
	if min < 0 || max < 0 || min > max {
		panic(fmt.Sprintf("sequence: invalid occurrence range [%d, %d]", min, max))
	}
}

// Min returns the lower bound.
func (t Times) Min() int { return t.min }

// Max returns the upper bound; Unbounded when there is none.
func (t Times) Max() int { return t.max }

// Allows reports whether count lies within the range.
func (t Times) Allows(count int) bool {
	return count >= t.min && count <= t.max
}

// String describes the range the way violation messages print it,
// e.g. "exactly 2 times".
func (t Times) String() string {
	if t.desc == "" {
		return "never"
	}
	return t.desc
}
