package sequence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useFlowMode switches to FlowMode for the duration of the test.
func useFlowMode(t *testing.T) {
	t.Helper()
	require.NoError(t, SetMode(FlowMode))
	t.Cleanup(func() {
		require.NoError(t, SetMode(GoroutineMode))
	})
}

func TestMode_DefaultIsGoroutine(t *testing.T) {
	assert.Same(t, GoroutineMode, Mode())
	assert.Equal(t, "goroutine", Mode().Name())
	assert.Equal(t, "flow", FlowMode.String())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  *ContextMode
	}{
		{"goroutine", GoroutineMode},
		{"thread", GoroutineMode},
		{"", GoroutineMode},
		{"flow", FlowMode},
		{" Async ", FlowMode},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}

	_, err := ParseMode("fiber")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid context mode")
}

func TestSetMode_FailsWhileSequenceOpen(t *testing.T) {
	_, s := create(t, context.Background())

	err := SetMode(FlowMode)
	require.Error(t, err)
	assert.Equal(t, ErrCodeModeSwitch, UsageCodeOf(err))
	assert.Same(t, GoroutineMode, Mode())

	require.NoError(t, s.Close())
	assert.Equal(t, int64(0), OpenCount())
}

func TestSetMode_Nil(t *testing.T) {
	err := SetMode(nil)
	assert.Equal(t, ErrCodeInvalidArgument, UsageCodeOf(err))
}

func TestSetMode_SameModeIsNoop(t *testing.T) {
	_, s := create(t, context.Background())
	defer s.Close()

	assert.NoError(t, SetMode(GoroutineMode))
}

func TestGoroutineMode_SequenceInvisibleToOtherGoroutines(t *testing.T) {
	ctx, s := create(t, context.Background())
	defer s.Close()

	seen := make(chan bool)
	go func() {
		_, ok := Active(ctx)
		seen <- ok
	}()
	assert.False(t, <-seen)

	got, ok := Active(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestFlowMode_SequenceFollowsContextAcrossGoroutines(t *testing.T) {
	useFlowMode(t)

	ctx, s := create(t, context.Background())
	assert.Same(t, FlowMode, s.ContextMode())

	foo := declare(t, ctx, "foo", Once())
	bar := declare(t, ctx, "bar", Once())

	// Each call resumes on a different goroutine, like work handed to a
	// pool after an await.
	for _, step := range []*Step{foo, bar} {
		done := make(chan error)
		go func() {
			done <- Report(ctx, step)
		}()
		require.NoError(t, <-done)
	}

	assert.NoError(t, s.Close())
}

func TestFlowMode_ParentContextDoesNotSeeSequence(t *testing.T) {
	useFlowMode(t)

	parent := context.Background()
	ctx, s := create(t, parent)
	defer s.Close()

	_, ok := Active(parent)
	assert.False(t, ok)

	_, ok = Active(ctx)
	assert.True(t, ok)
}

func TestFlowMode_CannotCreateSecondSequenceInSameFlow(t *testing.T) {
	useFlowMode(t)

	ctx, s := create(t, context.Background())
	defer s.Close()

	derived, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error)
	go func() {
		_, _, err := Create(derived)
		done <- err
	}()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, ErrCodeSequenceActive, UsageCodeOf(err))
}

func TestFlowMode_IndependentFlows(t *testing.T) {
	useFlowMode(t)

	root := context.Background()
	ctxA, a := create(t, root)
	ctxB, b := create(t, root)

	stepA := declare(t, ctxA, "a", Once())
	stepB := declare(t, ctxB, "b", Once())

	require.NoError(t, Report(ctxB, stepB))
	require.NoError(t, Report(ctxA, stepA))

	assert.NoError(t, a.Close())
	assert.NoError(t, b.Close())
}

func TestFlowMode_ClosedSequenceIsNoLongerActive(t *testing.T) {
	useFlowMode(t)

	ctx, s := create(t, context.Background())
	require.NoError(t, s.Close())

	_, ok := Active(ctx)
	assert.False(t, ok)

	_, err := DeclareStep(ctx, "late", Once())
	assert.Equal(t, ErrCodeNoActiveSequence, UsageCodeOf(err))

	ctx2, s2 := create(t, ctx)
	defer s2.Close()
	got, ok := Active(ctx2)
	require.True(t, ok)
	assert.Same(t, s2, got)
}

func TestSetMode_ConcurrentCreateStaysReachable(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, SetMode(GoroutineMode))
	})

	stop := make(chan struct{})
	var switcher sync.WaitGroup
	switcher.Add(1)
	go func() {
		defer switcher.Done()
		modes := []*ContextMode{FlowMode, GoroutineMode}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				_ = SetMode(modes[i%2])
			}
		}
	}()

	var unreachable atomic.Int32
	var workers sync.WaitGroup
	for w := 0; w < 4; w++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for i := 0; i < 200; i++ {
				ctx, s, err := Create(context.Background(), WithLogger(quietLogger()))
				if err != nil {
					unreachable.Add(1)
					continue
				}
				got, ok := Active(ctx)
				if !ok || got != s || Mode() != s.ContextMode() {
					unreachable.Add(1)
				}
				_ = s.Close()
			}
		}()
	}

	workers.Wait()
	close(stop)
	switcher.Wait()

	assert.Zero(t, unreachable.Load(), "every open sequence stays in the store of the current mode")
	assert.Equal(t, int64(0), OpenCount())
}
