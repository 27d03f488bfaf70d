package mocksequence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwhelan/sequences/internal/sequence"
	"github.com/dwhelan/sequences/internal/testutil"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Open(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Write(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func newSequence(t *testing.T) (context.Context, *sequence.Sequence) {
	t.Helper()
	ctx, seq, err := sequence.Create(context.Background(),
		sequence.WithLogger(testutil.DiscardLogger()),
		sequence.WithIDGenerator(sequence.NewFixedGenerator("mock-test")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = seq.Close() })
	return ctx, seq
}

func TestInSequence_CallsInOrder(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}

	InSequence(ctx, t, store.On("Open", mock.Anything).Return(nil))
	InSequence(ctx, t, store.On("Write", mock.Anything, mock.Anything).Return(nil), sequence.AtLeastOnce())
	InSequence(ctx, t, store.On("Close").Return(nil))

	require.NoError(t, store.Open(ctx))
	require.NoError(t, store.Write(ctx, "a"))
	require.NoError(t, store.Write(ctx, "b"))
	require.NoError(t, store.Close())

	assert.NoError(t, seq.Close())
	store.AssertExpectations(t)
}

func TestInSequence_ReportsOutOfOrderCall(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}
	reporter := testutil.NewReporter()

	InSequence(ctx, reporter, store.On("Open", mock.Anything).Return(nil))
	InSequence(ctx, reporter, store.On("Close").Return(nil))

	require.NoError(t, store.Close(), "the mock still returns its configured values")

	errs := reporter.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Close was called but invocations for Open were not completed.")
	assert.True(t, seq.Failed())
	assert.NoError(t, seq.Close(), "a failed sequence skips the end check")
}

func TestInSequence_ReportsExceededCount(t *testing.T) {
	ctx, _ := newSequence(t)
	store := &mockStore{}
	reporter := testutil.NewReporter()

	InSequence(ctx, reporter, store.On("Open", mock.Anything).Return(nil))

	require.NoError(t, store.Open(ctx))
	assert.False(t, reporter.Failed())

	require.NoError(t, store.Open(ctx))
	require.True(t, reporter.Failed())
	assert.Contains(t, reporter.Errors()[0], "Exceeded maximum number of invocations.")
}

func TestInSequence_IncompleteAtClose(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}

	InSequence(ctx, t, store.On("Open", mock.Anything).Return(nil))
	InSequence(ctx, t, store.On("Close").Return(nil))

	require.NoError(t, store.Open(ctx))

	err := seq.Close()
	require.Error(t, err)
	assert.Equal(t, sequence.ErrCodeIncomplete, sequence.ViolationCodeOf(err))
	assert.Contains(t, err.Error(), "Close")
}

func TestInSequence_ChainsExistingRun(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}

	var written []string
	call := store.On("Write", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		written = append(written, args.String(1))
	})
	InSequence(ctx, t, call, sequence.Exactly(2))

	require.NoError(t, store.Write(ctx, "x"))
	require.NoError(t, store.Write(ctx, "y"))

	assert.Equal(t, []string{"x", "y"}, written)
	assert.NoError(t, seq.Close())
}

func TestRun_KeepsReportingAfterInSequence(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}
	reporter := testutil.NewReporter()

	InSequence(ctx, reporter, store.On("Open", mock.Anything).Return(nil))
	closed := 0
	Run(InSequence(ctx, reporter, store.On("Close").Return(nil)), func(mock.Arguments) {
		closed++
	})

	require.NoError(t, store.Close())

	assert.Equal(t, 1, closed)
	errs := reporter.Errors()
	require.Len(t, errs, 1, "the out-of-order Close is reported when it happens")
	assert.Contains(t, errs[0], "Close was called but invocations for Open were not completed.")
	assert.True(t, seq.Failed())
}

func TestRun_ChainsInOrder(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}

	var order []string
	call := store.On("Write", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		order = append(order, "first")
	})
	Run(InSequence(ctx, t, call), func(args mock.Arguments) {
		order = append(order, "then "+args.String(1))
	})

	require.NoError(t, store.Write(ctx, "x"))

	assert.Equal(t, []string{"first", "then x"}, order)
	assert.NoError(t, seq.Close())
}

func TestRun_WithoutExistingRun(t *testing.T) {
	store := &mockStore{}

	var got string
	Run(store.On("Write", mock.Anything, mock.Anything).Return(nil), func(args mock.Arguments) {
		got = args.String(1)
	})

	require.NoError(t, store.Write(context.Background(), "k"))
	assert.Equal(t, "k", got)
}

func TestInSequence_WithinLoop(t *testing.T) {
	ctx, seq := newSequence(t)
	store := &mockStore{}

	InSequence(ctx, t, store.On("Open", mock.Anything).Return(nil))
	err := sequence.WithLoop(ctx, sequence.Exactly(2), func() error {
		InSequence(ctx, t, store.On("Write", mock.Anything, mock.Anything).Return(nil))
		InSequence(ctx, t, store.On("Close").Return(nil))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.Open(ctx))
	for _, key := range []string{"a", "b"} {
		require.NoError(t, store.Write(ctx, key))
		require.NoError(t, store.Close())
	}

	assert.NoError(t, seq.Close())
}

func TestInSequence_WithoutActiveSequence(t *testing.T) {
	store := &mockStore{}
	reporter := testutil.NewReporter()

	InSequence(context.Background(), reporter, store.On("Open", mock.Anything).Return(nil))

	require.True(t, reporter.Failed())
	assert.Contains(t, reporter.Errors()[0], "Declaring a step can only be called with an active sequence")

	require.NoError(t, store.Open(context.Background()))
	assert.Len(t, reporter.Errors(), 1, "no hook is attached when declaration fails")
}

func TestInSequence_FlowModeFollowsCallerContext(t *testing.T) {
	require.NoError(t, sequence.SetMode(sequence.FlowMode))
	t.Cleanup(func() { require.NoError(t, sequence.SetMode(sequence.GoroutineMode)) })

	ctx, seq, err := sequence.Create(context.Background(), sequence.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)

	store := &mockStore{}
	reporter := testutil.NewReporter()

	InSequence(ctx, reporter, store.On("Open", mock.Anything).Return(nil))
	InSequence(ctx, reporter, store.On("Write", mock.Anything, mock.Anything).Return(nil))

	// Each call continues on a fresh goroutine, as after an await.
	calls := []func() error{
		func() error { return store.Open(ctx) },
		func() error { return store.Write(ctx, "k") },
	}
	for _, call := range calls {
		done := make(chan error)
		go func() { done <- call() }()
		require.NoError(t, <-done)
	}

	assert.Empty(t, reporter.Errors())
	assert.NoError(t, seq.Close())
}

func TestInSequence_FlowModeCallOutsideFlow(t *testing.T) {
	require.NoError(t, sequence.SetMode(sequence.FlowMode))
	t.Cleanup(func() { require.NoError(t, sequence.SetMode(sequence.GoroutineMode)) })

	ctx, seq, err := sequence.Create(context.Background(), sequence.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	defer seq.Close()

	store := &mockStore{}
	reporter := testutil.NewReporter()
	InSequence(ctx, reporter, store.On("Open", mock.Anything).Return(nil))

	require.NoError(t, store.Open(context.Background()))

	require.True(t, reporter.Failed())
	assert.Contains(t, reporter.Errors()[0], "Mock invocation can only be called with an active sequence")
}

type fakeClock struct {
	tick func(context.Context)
}

func (f *fakeClock) Tick(ctx context.Context) { f.tick(ctx) }

func TestExpect_ReportsEachCall(t *testing.T) {
	ctx, seq := newSequence(t)

	clock := &fakeClock{tick: Expect(ctx, t, "tick", sequence.Exactly(3))}
	done := Expect(ctx, t, "done")

	for i := 0; i < 3; i++ {
		clock.Tick(ctx)
	}
	done(nil)

	assert.NoError(t, seq.Close())
}

func TestExpect_ReportsViolation(t *testing.T) {
	ctx, _ := newSequence(t)
	reporter := testutil.NewReporter()

	first := Expect(ctx, reporter, "first")
	second := Expect(ctx, reporter, "second")

	second(ctx)
	first(ctx)

	errs := reporter.Errors()
	require.Len(t, errs, 1, "the late call to first is still in range")
	assert.Contains(t, errs[0], "second was called but invocations for first were not completed.")
}
