package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

type BrandStore struct {
	mu      sync.Mutex
	brands  map[string]*brands.Brand
	threats *ThreatStore
}

// NewBrandStore derives unresolved counts from ts; ts may be nil.
func NewBrandStore(ts *ThreatStore, seed ...*brands.Brand) *BrandStore {
	s := &BrandStore{brands: map[string]*brands.Brand{}, threats: ts}
	for _, b := range seed {
		s.Put(b)
	}
	return s
}

func (s *BrandStore) Put(b *brands.Brand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.brands[b.ID] = &cp
}

func (s *BrandStore) Get(_ context.Context, id string) (*brands.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brands[id]
	if !ok {
		return nil, brands.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *BrandStore) List(_ context.Context) ([]*brands.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*brands.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *BrandStore) RefreshThreatCount(_ context.Context, id string) (int, error) {
	n := 0
	if s.threats != nil {
		n = s.threats.CountUnresolved(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brands[id]
	if !ok {
		return 0, brands.ErrNotFound
	}
	b.UnresolvedThreats = n
	return n, nil
}
