package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render formats the result as stable text for golden comparison:
//
//	scenario: send_ack_loop
//	sequence: test-sequence-default
//	verified: true
//	calls:
//	  1 open ok
//	  2 send ok
//	errors: none
//	tree:
//	  sequence "sequence" [at most once] count=1
//	  ...
//
// Multi-line error messages are indented under their header line.
func (r *Result) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "sequence: %s\n", r.SequenceID)
	fmt.Fprintf(&b, "verified: %t\n", r.Verified)

	if len(r.Trace) == 0 {
		b.WriteString("calls: none\n")
	} else {
		b.WriteString("calls:\n")
		for _, c := range r.Trace {
			status := "ok"
			if !c.OK {
				status = "failed"
			}
			fmt.Fprintf(&b, "  %d %s %s\n", c.Index, c.Step, status)
		}
	}

	if len(r.Errors) == 0 {
		b.WriteString("errors: none\n")
	} else {
		b.WriteString("errors:\n")
		for _, e := range r.Errors {
			at := "close"
			if e.Call > 0 {
				at = fmt.Sprintf("call %d", e.Call)
			}
			fmt.Fprintf(&b, "  [%s] at %s\n", e.Code, at)
			for _, line := range strings.Split(e.Message, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}

	b.WriteString("tree:\n")
	for _, line := range strings.SplitAfter(r.Snapshot.Render(), "\n") {
		if line != "" {
			b.WriteString("  " + line)
		}
	}
	return b.String()
}

// RunWithGolden executes a scenario and compares the rendered result
// against a golden file. The golden file is stored in
// testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the result doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against the golden
// file named name.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.Render()))
}
