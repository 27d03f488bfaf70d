package sequence

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dwhelan/sequences/internal/scope"
)

// ContextMode decides where the active sequence is kept, and therefore who
// can see it. The mode is a process-wide setting; see SetMode.
type ContextMode struct {
	name  string
	store scope.Store[*Sequence]
}

var (
	// GoroutineMode restricts each sequence to the goroutine that created
	// it. Sequences created on different goroutines are independent, and
	// code running on another goroutine never sees the sequence. This is
	// the default.
	GoroutineMode = &ContextMode{name: "goroutine", store: scope.NewGoroutineStore[*Sequence]()}

	// FlowMode carries the sequence in the context.Context returned by
	// Create. Any code handed that context, or one derived from it, sees
	// the sequence, on whatever goroutine it runs. Use it when the code
	// under test hands work to other goroutines.
	FlowMode = &ContextMode{name: "flow", store: scope.NewFlowStore[*Sequence]("sequence")}
)

var (
	// modeMu orders SetMode against Create, so a sequence is always saved
	// in the store of the mode that is current while it is open.
	modeMu        sync.Mutex
	currentMode   atomic.Pointer[ContextMode]
	openSequences atomic.Int64
)

func init() {
	currentMode.Store(GoroutineMode)
}

// Name returns "goroutine" or "flow".
func (m *ContextMode) Name() string { return m.name }

// String implements fmt.Stringer.
func (m *ContextMode) String() string { return m.name }

// Mode returns the process-wide context mode.
func Mode() *ContextMode {
	return currentMode.Load()
}

// SetMode switches the process-wide context mode. It fails with a
// *UsageError while any sequence is open, because open sequences are not
// moved between modes.
func SetMode(m *ContextMode) error {
	if m == nil {
		return newUsageError(ErrCodeInvalidArgument, "SetMode requires a non-nil context mode.")
	}
	modeMu.Lock()
	defer modeMu.Unlock()

	if currentMode.Load() == m {
		return nil
	}
	if n := openSequences.Load(); n > 0 {
		return newUsageError(ErrCodeModeSwitch,
			"Cannot switch to %s context mode while %d sequence(s) are open.", m.name, n)
	}
	currentMode.Store(m)
	slog.Debug("sequence context mode changed", "mode", m.name)
	return nil
}

// ParseMode maps a mode name to its ContextMode. "thread" and "async" are
// accepted as aliases of "goroutine" and "flow".
func ParseMode(name string) (*ContextMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "goroutine", "thread", "":
		return GoroutineMode, nil
	case "flow", "async":
		return FlowMode, nil
	default:
		return nil, fmt.Errorf("invalid context mode %q: must be goroutine or flow", name)
	}
}

// OpenCount returns the number of sequences created and not yet closed,
// across all scopes.
func OpenCount() int64 {
	return openSequences.Load()
}
