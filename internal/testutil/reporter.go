package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Reporter records failures instead of failing the test.
//
// It stands in for *testing.T when a test needs to assert that code under
// test reported a failure. Use the real t for everything else.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Mock invocations in flow mode report from other goroutines.
type Reporter struct {
	mu     sync.Mutex
	errors []string
}

// NewReporter creates a reporter with no recorded failures.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Helper is a no-op.
func (r *Reporter) Helper() {}

// Errorf records a formatted failure.
func (r *Reporter) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

// Errors returns a copy of the recorded failures in order.
func (r *Reporter) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.errors))
	copy(out, r.errors)
	return out
}

// Failed reports whether any failure was recorded.
func (r *Reporter) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors) > 0
}

// Reset clears recorded failures.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = nil
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
