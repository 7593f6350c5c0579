package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
)

type ScanStore struct {
	mu    sync.Mutex
	scans map[string]*scans.Scan
}

func NewScanStore() *ScanStore {
	return &ScanStore{scans: map[string]*scans.Scan{}}
}

func (s *ScanStore) Create(_ context.Context, sc *scans.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	if sc.Status == "" {
		sc.Status = scans.StatusQueued
	}
	if sc.PartialErrors == nil {
		sc.PartialErrors = []scans.PartialError{}
	}
	s.scans[sc.ID] = clone(sc)
	return nil
}

func (s *ScanStore) Get(_ context.Context, id string) (*scans.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return nil, scans.ErrNotFound
	}
	return clone(sc), nil
}

func (s *ScanStore) MarkRunning(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(sc *scans.Scan) {
		if sc.Status != scans.StatusQueued && sc.Status != scans.StatusRunning {
			return
		}
		sc.Status = scans.StatusRunning
		if sc.StartedAt == nil {
			t := at
			sc.StartedAt = &t
		}
	})
}

func (s *ScanStore) UpdateProgress(_ context.Context, id string, p scans.Progress) error {
	return s.update(id, func(sc *scans.Scan) { sc.Progress = p })
}

func (s *ScanStore) AppendPartialError(_ context.Context, id string, pe scans.PartialError) error {
	return s.update(id, func(sc *scans.Scan) { sc.PartialErrors = append(sc.PartialErrors, pe) })
}

func (s *ScanStore) Complete(_ context.Context, id string, p scans.Progress, at time.Time) error {
	return s.update(id, func(sc *scans.Scan) {
		sc.Progress = p
		sc.Status = scans.StatusCompleted
		sc.Error = ""
		t := at
		sc.CompletedAt = &t
	})
}

func (s *ScanStore) SetStatus(_ context.Context, id string, status scans.Status, errMsg string, at time.Time) error {
	return s.update(id, func(sc *scans.Scan) {
		sc.Status = status
		sc.Error = errMsg
		sc.CompletedAt = nil
		if sc.Terminal() {
			t := at
			sc.CompletedAt = &t
		}
	})
}

func (s *ScanStore) update(id string, fn func(*scans.Scan)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return scans.ErrNotFound
	}
	fn(sc)
	return nil
}

func clone(sc *scans.Scan) *scans.Scan {
	cp := *sc
	cp.PartialErrors = append([]scans.PartialError{}, sc.PartialErrors...)
	return &cp
}
