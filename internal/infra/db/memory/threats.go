package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

type ThreatStore struct {
	mu      sync.Mutex
	threats []*threats.Threat
	keys    map[string]bool // brandID + dedup key
}

func NewThreatStore() *ThreatStore {
	return &ThreatStore{keys: map[string]bool{}}
}

func (s *ThreatStore) ExistsByDomain(_ context.Context, brandID, domain string) (bool, error) {
	return s.any(func(t *threats.Threat) bool { return t.BrandID == brandID && t.Domain == domain }), nil
}

func (s *ThreatStore) ExistsByURL(_ context.Context, brandID, url string) (bool, error) {
	return s.any(func(t *threats.Threat) bool { return t.BrandID == brandID && t.URL == url }), nil
}

func (s *ThreatStore) InsertMany(_ context.Context, ts []*threats.Threat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range ts {
		k := t.BrandID + "|" + t.DedupKey()
		if s.keys[k] {
			continue
		}
		cp := *t
		if cp.Status == "" {
			cp.Status = threats.StatusPending
		}
		s.keys[k] = true
		s.threats = append(s.threats, &cp)
		n++
	}
	return n, nil
}

func (s *ThreatStore) ListByBrand(_ context.Context, brandID string, page, pageSize int) (*threats.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	s.mu.Lock()
	var all []*threats.Threat
	for _, t := range s.threats {
		if t.BrandID == brandID {
			cp := *t
			all = append(all, &cp)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(all, func(a, b int) bool { return all[a].DetectedAt.After(all[b].DetectedAt) })
	out := []*threats.Threat{}
	if from := (page - 1) * pageSize; from < len(all) {
		out = all[from:min(from+pageSize, len(all))]
	}
	return &threats.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(len(all)),
		TotalPages: int(math.Ceil(float64(len(all)) / float64(pageSize))),
	}, nil
}

// CountUnresolved counts pending and confirmed threats for a brand.
func (s *ThreatStore) CountUnresolved(brandID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.threats {
		if t.BrandID == brandID && (t.Status == threats.StatusPending || t.Status == threats.StatusConfirmed) {
			n++
		}
	}
	return n
}

func (s *ThreatStore) any(pred func(*threats.Threat) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.threats {
		if pred(t) {
			return true
		}
	}
	return false
}
