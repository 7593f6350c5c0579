package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/application"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/jobs"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/infra/db/memory"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) RunJob(ctx context.Context, j *domain.Job) error {
	return m.Called(ctx, j).Error(0)
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	w      *Worker
	store  *memory.JobStore
	scans  *memory.ScanStore
	runner *mockRunner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: memory.NewJobStore(), scans: memory.NewScanStore(), runner: &mockRunner{}}
	h.w = &Worker{
		Store:  h.store,
		Scans:  h.scans,
		Runner: h.runner,
		Clock:  application.ClockFunc(func() time.Time { return now }),
		Config: Config{ID: "w1", PollInterval: 10 * time.Millisecond, StaleAfter: 10 * time.Minute},
	}
	return h
}

func (h *harness) enqueue(t *testing.T, id string, attempts int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.scans.Create(ctx, &scans.Scan{ID: "scan-" + id, BrandID: "b1", Type: scans.TypeQuick}))
	require.NoError(t, h.store.Enqueue(ctx, &domain.Job{
		ID: id, BrandID: "b1", ScanID: "scan-" + id, ScanType: scans.TypeQuick,
		ScheduledAt: now.Add(-2 * time.Hour), Attempts: attempts, MaxAttempts: 3,
	}))
}

func TestTick_Idle(t *testing.T) {
	h := newHarness(t)
	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, out)
	h.runner.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)
}

func TestTick_Success(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	h.runner.On("RunJob", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool {
		return j.ID == "j1" && j.LockedBy == "w1" && j.Attempts == 1
	})).Return(nil).Once()

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out)

	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusCompleted, j.Status)
	assert.Nil(t, j.LockedAt)
	assert.Empty(t, j.LockedBy)
	assert.Empty(t, j.LastError)
	h.runner.AssertExpectations(t)
}

func TestTick_RetryBackoff(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 1) // claimed as attempt 2 of 3
	h.runner.On("RunJob", mock.Anything, mock.Anything).Return(errors.New("dns provider unreachable")).Once()

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequeued, out)

	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusQueued, j.Status)
	assert.Equal(t, 2, j.Attempts)
	assert.Equal(t, now.Add(10*time.Second), j.ScheduledAt)
	assert.Equal(t, "dns provider unreachable", j.LastError)
	assert.Nil(t, j.LockedAt)

	s, _ := h.scans.Get(context.Background(), "scan-j1")
	assert.Equal(t, scans.StatusQueued, s.Status)

	// not eligible until the backoff elapses
	out, err = h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, out)
}

func TestTick_FinalAttemptFails(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 2)
	h.runner.On("RunJob", mock.Anything, mock.Anything).Return(errors.New("boom")).Once()

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)

	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusFailed, j.Status)
	s, _ := h.scans.Get(context.Background(), "scan-j1")
	assert.Equal(t, scans.StatusFailed, s.Status)
	assert.Equal(t, "boom", s.Error)
}

func TestTick_CancellationIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	h.runner.On("RunJob", mock.Anything, mock.Anything).Return(fmt.Errorf("phase domains: %w", scans.ErrScanCancelled)).Once()

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out)

	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusCancelled, j.Status)
	s, _ := h.scans.Get(context.Background(), "scan-j1")
	assert.Equal(t, scans.StatusCancelled, s.Status)
	assert.True(t, s.Cancelled())
}

func TestTick_PermanentFailsImmediately(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	h.runner.On("RunJob", mock.Anything, mock.Anything).Return(scans.Permanent(errors.New("brand b1: brand not found"))).Once()

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusFailed, j.Status)
	assert.Equal(t, 1, j.Attempts)
}

func TestTick_StaleReclaimPastMaxAttemptsFails(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 2)
	// a worker claimed attempt 3 and died
	_, err := h.store.ClaimNext(context.Background(), "dead", now.Add(-time.Hour), 10*time.Minute)
	require.NoError(t, err)

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out)
	h.runner.AssertNotCalled(t, "RunJob", mock.Anything, mock.Anything)

	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusFailed, j.Status)
	assert.Contains(t, j.LastError, "max attempts")
}

func TestTick_StaleReclaimWithinBudgetRuns(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	_, err := h.store.ClaimNext(context.Background(), "dead", now.Add(-time.Hour), 10*time.Minute)
	require.NoError(t, err)
	h.runner.On("RunJob", mock.Anything, mock.MatchedBy(func(j *domain.Job) bool { return j.Attempts == 2 })).Return(nil).Once()

	out, err := h.w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out)
	h.runner.AssertExpectations(t)
}

func TestTick_ShutdownLeavesJobLocked(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	ctx, cancel := context.WithCancel(context.Background())
	h.runner.On("RunJob", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(context.Canceled).Once()

	out, err := h.w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, out)
	j, _ := h.store.Get(context.Background(), "j1")
	assert.Equal(t, domain.StatusRunning, j.Status)
	assert.Equal(t, "w1", j.LockedBy)
}

func TestTick_LostLeaseLeavesNewOwnerAlone(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	ctx := context.Background()
	h.runner.On("RunJob", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		// the run outlives the stale threshold and another worker takes over
		j, err := h.store.ClaimNext(ctx, "w2", now.Add(time.Hour), 10*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, j)
		require.NoError(t, h.scans.SetStatus(ctx, "scan-j1", scans.StatusRunning, "", now))
	}).Return(nil).Once()

	out, err := h.w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeaseLost, out)

	j, _ := h.store.Get(ctx, "j1")
	assert.Equal(t, domain.StatusRunning, j.Status)
	assert.Equal(t, "w2", j.LockedBy)
	assert.Equal(t, 2, j.Attempts)
	s, _ := h.scans.Get(ctx, "scan-j1")
	assert.Equal(t, scans.StatusRunning, s.Status)
}

func TestTick_LostLeaseSkipsRetryBookkeeping(t *testing.T) {
	h := newHarness(t)
	h.enqueue(t, "j1", 0)
	ctx := context.Background()
	h.runner.On("RunJob", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		_, err := h.store.ClaimNext(ctx, "w2", now.Add(time.Hour), 10*time.Minute)
		require.NoError(t, err)
		require.NoError(t, h.scans.SetStatus(ctx, "scan-j1", scans.StatusRunning, "", now))
	}).Return(errors.New("dns provider unreachable")).Once()

	out, err := h.w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeaseLost, out)

	j, _ := h.store.Get(ctx, "j1")
	assert.Equal(t, domain.StatusRunning, j.Status)
	assert.Equal(t, "w2", j.LockedBy)
	assert.Empty(t, j.LastError)
	s, _ := h.scans.Get(ctx, "scan-j1")
	assert.Equal(t, scans.StatusRunning, s.Status)
	assert.Empty(t, s.Error)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.w.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestDefaultWorkerIDIsUnique(t *testing.T) {
	assert.NotEqual(t, DefaultWorkerID(), DefaultWorkerID())
}
