package scans

import (
	"fmt"
)

// Type enum
type Type string

const (
	TypeFull       Type = "full"
	TypeQuick      Type = "quick"
	TypeDomainOnly Type = "domain_only"
	TypeWebOnly    Type = "web_only"
	TypeSocialOnly Type = "social_only"
	TypeAutomated  Type = "automated"
)

// Overrides is the optional job payload.
type Overrides struct {
	VariationLimit *int     `json:"variation_limit,omitempty"`
	Platforms      []string `json:"platforms,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
}

// Config is the resolved phase plan for one run.
type Config struct {
	Type           Type
	Domains        bool
	Web            bool
	Logo           bool
	Social         bool
	VariationLimit int
	Platforms      []string
	Keywords       []string
}

// Phase progress weights; disabled phases drop out and the rest renormalize.
const (
	WeightDomains = 40
	WeightWeb     = 25
	WeightLogo    = 15
	WeightSocial  = 20
)

var profiles = map[Type]Config{
	TypeFull:       {Domains: true, Web: true, Logo: true, Social: true, VariationLimit: 500},
	TypeQuick:      {Domains: true, Web: true, VariationLimit: 25},
	TypeDomainOnly: {Domains: true, VariationLimit: 100},
	TypeWebOnly:    {Web: true},
	TypeSocialOnly: {Social: true},
	TypeAutomated:  {Domains: true, Web: true, Logo: true, Social: true, VariationLimit: 500},
}

// Profile resolves a scan type plus payload overrides. Unknown types are permanent errors.
func Profile(t Type, o Overrides) (Config, error) {
	cfg, ok := profiles[t]
	if !ok {
		return Config{}, Permanent(fmt.Errorf("unknown scan type %q", t))
	}
	cfg.Type = t
	if o.VariationLimit != nil && *o.VariationLimit > 0 {
		cfg.VariationLimit = *o.VariationLimit
	}
	cfg.Platforms = append([]string(nil), o.Platforms...)
	cfg.Keywords = append([]string(nil), o.Keywords...)
	return cfg, nil
}

// Steps lists the enabled phases in execution order.
func (c Config) Steps() []Step {
	var out []Step
	if c.Domains {
		out = append(out, StepDomains)
	}
	if c.Web {
		out = append(out, StepWeb)
	}
	if c.Logo {
		out = append(out, StepLogo)
	}
	if c.Social {
		out = append(out, StepSocial)
	}
	return out
}

// StepWeight returns the phase's share of overall progress after renormalization, in [0,1].
func (c Config) StepWeight(s Step) float64 {
	total := 0
	for _, st := range c.Steps() {
		total += rawWeight(st)
	}
	if total == 0 || !c.enabled(s) {
		return 0
	}
	return float64(rawWeight(s)) / float64(total)
}

func (c Config) enabled(s Step) bool {
	for _, st := range c.Steps() {
		if st == s {
			return true
		}
	}
	return false
}

func rawWeight(s Step) int {
	switch s {
	case StepDomains:
		return WeightDomains
	case StepWeb:
		return WeightWeb
	case StepLogo:
		return WeightLogo
	case StepSocial:
		return WeightSocial
	}
	return 0
}
