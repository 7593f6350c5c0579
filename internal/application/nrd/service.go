package nrd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/nrd"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

// MaxFeedSize bounds one match request.
const MaxFeedSize = 10000

// Service matches newly-registered-domain feeds against stored brands.
type Service struct {
	Brands brands.Repository
	Log    *slog.Logger
}

// Command untuk match feed
type MatchCommand struct {
	Domains  []string `json:"domains"`
	BrandIDs []string `json:"brand_ids,omitempty"` // empty means every brand
}

type MatchResult struct {
	Checked int            `json:"checked"`
	Matches []domain.Match `json:"matches"`
}

func (s *Service) Match(ctx context.Context, cmd MatchCommand) (*MatchResult, error) {
	if len(cmd.Domains) > MaxFeedSize {
		return nil, fmt.Errorf("%w: %d domains exceeds %d", ErrFeedTooLarge, len(cmd.Domains), MaxFeedSize)
	}
	bs, err := s.load(ctx, cmd.BrandIDs)
	if err != nil {
		return nil, err
	}

	feed := make([]string, 0, len(cmd.Domains))
	for _, d := range cmd.Domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			feed = append(feed, d)
		}
	}
	matches := domain.NewMatcher(bs).MatchBatch(feed)
	if matches == nil {
		matches = []domain.Match{}
	}
	logging.OrDefault(s.Log).Info("nrd feed matched", "domains", len(feed), "brands", len(bs), "matches", len(matches))
	return &MatchResult{Checked: len(feed), Matches: matches}, nil
}

func (s *Service) load(ctx context.Context, ids []string) ([]*brands.Brand, error) {
	if len(ids) == 0 {
		return s.Brands.List(ctx)
	}
	out := make([]*brands.Brand, 0, len(ids))
	for _, id := range ids {
		b, err := s.Brands.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("brand %s: %w", id, err)
		}
		out = append(out, b)
	}
	return out, nil
}
