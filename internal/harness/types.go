package harness

import "github.com/dwhelan/sequences/internal/sequence"

// CallRecord is one replayed call.
type CallRecord struct {
	// Index is the 1-based position in the scenario's calls.
	Index int    `json:"index"`
	Step  string `json:"step"`
	OK    bool   `json:"ok"`
}

// ErrorRecord is one error raised while verifying.
type ErrorRecord struct {
	// Code is the violation or usage code.
	Code string `json:"code"`

	Message string `json:"message"`

	// Call is the 1-based index of the failing call, or 0 if the error was
	// raised when the sequence was closed.
	Call int `json:"call,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	Scenario   string `json:"scenario"`
	SequenceID string `json:"sequence_id"`

	// Verified is true if no call and no close failed.
	Verified bool `json:"verified"`

	// Pass is true if the outcome matched the scenario's expectation.
	Pass bool `json:"pass"`

	// Trace contains replayed calls in order. Replay stops at the first
	// failing call.
	Trace []CallRecord `json:"trace"`

	// Errors contains verification errors in the order they were raised.
	Errors []ErrorRecord `json:"errors,omitempty"`

	// Mismatches explains why Pass is false.
	Mismatches []string `json:"mismatches,omitempty"`

	// Snapshot is the sequence tree after close.
	Snapshot sequence.NodeSnapshot `json:"snapshot"`
}

// NewResult creates an empty result for a scenario.
func NewResult(scenario, sequenceID string) *Result {
	return &Result{
		Scenario:   scenario,
		SequenceID: sequenceID,
		Trace:      []CallRecord{},
	}
}

// AddCall appends a replayed call to the trace.
func (r *Result) AddCall(step string, err error) {
	r.Trace = append(r.Trace, CallRecord{
		Index: len(r.Trace) + 1,
		Step:  step,
		OK:    err == nil,
	})
}

// AddError records a verification error raised at call (0 for close).
func (r *Result) AddError(call int, err error) {
	r.Errors = append(r.Errors, ErrorRecord{
		Code:    errorCode(err),
		Message: err.Error(),
		Call:    call,
	})
}

// FirstError returns the first recorded error, if any.
func (r *Result) FirstError() (ErrorRecord, bool) {
	if len(r.Errors) == 0 {
		return ErrorRecord{}, false
	}
	return r.Errors[0], true
}

func errorCode(err error) string {
	if code := sequence.ViolationCodeOf(err); code != "" {
		return string(code)
	}
	if code := sequence.UsageCodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}
