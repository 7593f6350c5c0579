// Package memory holds mutex-guarded stores used by tests and single-process runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
)

type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*jobs.Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: map[string]*jobs.Job{}}
}

func (s *JobStore) Enqueue(_ context.Context, j *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = now
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = jobs.DefaultMaxAttempts
	}
	if j.Status == "" {
		j.Status = jobs.StatusQueued
	}
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// ClaimNext holds the lock across pick and claim, so two callers can never win the same job.
func (s *JobStore) ClaimNext(_ context.Context, workerID string, now time.Time, staleAfter time.Duration) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*jobs.Job
	for _, j := range s.jobs {
		if j.Claimable(now, staleAfter) {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.Slice(eligible, func(a, b int) bool {
		if eligible[a].Priority != eligible[b].Priority {
			return eligible[a].Priority > eligible[b].Priority
		}
		return eligible[a].ScheduledAt.Before(eligible[b].ScheduledAt)
	})
	j := eligible[0]
	locked := now
	j.Status = jobs.StatusRunning
	j.LockedBy = workerID
	j.LockedAt = &locked
	j.Attempts++
	j.UpdatedAt = now
	cp := *j
	return &cp, nil
}

func (s *JobStore) Complete(_ context.Context, id, workerID string, at time.Time) error {
	return s.settle(id, workerID, func(j *jobs.Job) {
		j.Status = jobs.StatusCompleted
		j.LastError = ""
		unlock(j, at)
	})
}

func (s *JobStore) Requeue(_ context.Context, id, workerID string, scheduledAt time.Time, lastErr string) error {
	return s.settle(id, workerID, func(j *jobs.Job) {
		j.Status = jobs.StatusQueued
		j.ScheduledAt = scheduledAt
		j.LastError = lastErr
		unlock(j, time.Now().UTC())
	})
}

func (s *JobStore) Fail(_ context.Context, id, workerID, lastErr string, at time.Time) error {
	return s.settle(id, workerID, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.LastError = lastErr
		unlock(j, at)
	})
}

func (s *JobStore) Cancel(_ context.Context, id, workerID, reason string, at time.Time) error {
	return s.settle(id, workerID, func(j *jobs.Job) {
		j.Status = jobs.StatusCancelled
		j.LastError = reason
		unlock(j, at)
	})
}

func (s *JobStore) CancelForScan(_ context.Context, scanID, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, j := range s.jobs {
		if j.ScanID == scanID && j.Status == jobs.StatusQueued {
			j.Status = jobs.StatusCancelled
			j.LastError = reason
			j.UpdatedAt = at
			changed = true
		}
	}
	return changed, nil
}

func (s *JobStore) settle(id, workerID string, fn func(*jobs.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return jobs.ErrNotFound
	}
	if j.Status != jobs.StatusRunning || j.LockedBy != workerID {
		return jobs.ErrLeaseLost
	}
	fn(j)
	return nil
}

func unlock(j *jobs.Job, at time.Time) {
	j.LockedAt = nil
	j.LockedBy = ""
	j.UpdatedAt = at
}
