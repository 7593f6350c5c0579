package ratelimit

import (
	"context"
	"errors"
	"time"
)

// SetConfig holds the five process-wide limiter settings.
type SetConfig struct {
	DNS        Config `yaml:"dns"`
	Search     Config `yaml:"search"`
	Screenshot Config `yaml:"screenshot"`
	AI         Config `yaml:"ai"`
	External   Config `yaml:"external"`
}

// DefaultSetConfig returns the production limits.
func DefaultSetConfig() SetConfig {
	return SetConfig{
		DNS:        Config{MaxConcurrent: 5, Interval: time.Second, MaxPerInterval: 10},
		Search:     Config{MaxConcurrent: 2, Interval: time.Second, MaxPerInterval: 2},
		Screenshot: Config{MaxConcurrent: 1, Interval: 2 * time.Second, MaxPerInterval: 1},
		AI:         Config{MaxConcurrent: 3, Interval: time.Minute, MaxPerInterval: 50},
		External:   Config{MaxConcurrent: 3, Interval: time.Second, MaxPerInterval: 5},
	}
}

// WithDefaults fills zero-valued limiters from DefaultSetConfig.
func (c SetConfig) WithDefaults() SetConfig {
	d := DefaultSetConfig()
	fill := func(v *Config, def Config) {
		if v.MaxConcurrent <= 0 {
			v.MaxConcurrent = def.MaxConcurrent
		}
		if v.Interval <= 0 {
			v.Interval = def.Interval
		}
		if v.MaxPerInterval <= 0 {
			v.MaxPerInterval = def.MaxPerInterval
		}
	}
	fill(&c.DNS, d.DNS)
	fill(&c.Search, d.Search)
	fill(&c.Screenshot, d.Screenshot)
	fill(&c.AI, d.AI)
	fill(&c.External, d.External)
	return c
}

// Set is the one limiter set per process, shared by every phase and every scan.
type Set struct {
	DNS        *Limiter
	Search     *Limiter
	Screenshot *Limiter
	AI         *Limiter
	External   *Limiter
}

func NewSet(cfg SetConfig) *Set {
	cfg = cfg.WithDefaults()
	return &Set{
		DNS:        New("dns", cfg.DNS),
		Search:     New("search", cfg.Search),
		Screenshot: New("screenshot", cfg.Screenshot),
		AI:         New("ai", cfg.AI),
		External:   New("external", cfg.External),
	}
}

func (s *Set) all() []*Limiter {
	return []*Limiter{s.DNS, s.Search, s.Screenshot, s.AI, s.External}
}

// CancelAll clears the queues of all five limiters.
func (s *Set) CancelAll() {
	for _, l := range s.all() {
		l.CancelAll()
	}
}

// Drain waits for queued and executing tasks across all limiters.
func (s *Set) Drain(ctx context.Context) error {
	var errs []error
	for _, l := range s.all() {
		if err := l.Drain(ctx); err != nil {
			errs = append(errs, err)
			break
		}
	}
	return errors.Join(errs...)
}
