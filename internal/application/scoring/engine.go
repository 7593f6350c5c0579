package scoring

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/bryanwahyu/brandsentry/internal/domain/ai"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

// Base component weights before renormalization.
const (
	WeightDomainRisk       = 0.35
	WeightVisualSimilarity = 0.40
	WeightPhishingIntent   = 0.25
)

var typeRisk = map[threats.Type]float64{
	threats.TypeTyposquatDomain:    0.70,
	threats.TypeLookalikeWebsite:   0.80,
	threats.TypePhishingPage:       0.95,
	threats.TypeFakeSocialAccount:  0.60,
	threats.TypeBrandImpersonation: 0.75,
	threats.TypeTrademarkAbuse:     0.50,
}

var severityRisk = map[threats.Severity]float64{
	threats.SeverityCritical: 0.95,
	threats.SeverityHigh:     0.75,
	threats.SeverityMedium:   0.50,
	threats.SeverityLow:      0.25,
}

// Gate runs a call under a rate limit.
type Gate interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// ImageLinker turns a stored screenshot key into a URL an AI provider can fetch.
type ImageLinker interface {
	ImageURL(ctx context.Context, objectKey string) (string, error)
}

// Engine blends domain risk, visual similarity and phishing intent. Intent and
// Vision are optional; without them the engine is purely heuristic.
type Engine struct {
	Intent ai.IntentClassifier
	Vision ai.VisualComparer
	Images ImageLinker
	AI     Gate
	Log    *slog.Logger
}

// DomainRisk is max(type risk, severity risk).
func DomainRisk(t threats.Type, s threats.Severity) float64 {
	return math.Max(typeRisk[t], severityRisk[s])
}

// Score never fails: provider errors degrade the affected component.
func (e *Engine) Score(ctx context.Context, in scans.ScoreInput) threats.Analysis {
	a := threats.Analysis{
		DomainRiskScore: DomainRisk(in.Type, in.Severity),
		IntentSource:    threats.IntentHeuristic,
	}
	e.visual(ctx, in.Evidence, &a)
	if in.Evidence.HasPageContent() {
		a.IntentAvailable = true
		e.intent(ctx, in.Evidence, in.Brand, &a)
	}
	Composite(&a)
	return a
}

// Composite fills weights, composite score and severity from the components already set on a.
func Composite(a *threats.Analysis) {
	w := threats.Weights{DomainRisk: WeightDomainRisk}
	if a.VisualStatus == threats.VisualComputed && a.VisualSimilarityScore != nil {
		w.VisualSimilarity = WeightVisualSimilarity
	}
	if a.IntentAvailable {
		w.PhishingIntent = WeightPhishingIntent
	}
	sum := w.Sum()
	w.DomainRisk /= sum
	w.VisualSimilarity /= sum
	w.PhishingIntent /= sum

	score := w.DomainRisk * clamp(a.DomainRiskScore)
	if w.VisualSimilarity > 0 {
		score += w.VisualSimilarity * clamp(*a.VisualSimilarityScore)
	}
	score += w.PhishingIntent * clamp(a.PhishingIntentScore)

	a.Weights = w
	a.CompositeScore = int(math.Round(score * 100))
	a.CompositeSeverity = SeverityForScore(a.CompositeScore)
}

// SeverityForScore bands a 0-100 composite score.
func SeverityForScore(score int) threats.Severity {
	switch {
	case score >= 85:
		return threats.SeverityCritical
	case score >= 70:
		return threats.SeverityHigh
	case score >= 45:
		return threats.SeverityMedium
	}
	return threats.SeverityLow
}

func (e *Engine) visual(ctx context.Context, ev threats.Evidence, a *threats.Analysis) {
	official, okOfficial := ev.Screenshot(threats.RoleOfficial)
	candidate, okCandidate := ev.Screenshot(threats.RoleCandidate)
	if (!okOfficial && !okCandidate) || e.Vision == nil || e.Images == nil {
		a.VisualStatus = threats.VisualUnavailable
		return
	}
	a.VisualStatus = threats.VisualPending
	if !okOfficial || !okCandidate {
		return
	}

	officialURL, err := e.Images.ImageURL(ctx, official.ObjectKey)
	if err != nil {
		e.log().Warn("visual compare skipped", "error", err)
		return
	}
	candidateURL, err := e.Images.ImageURL(ctx, candidate.ObjectKey)
	if err != nil {
		e.log().Warn("visual compare skipped", "error", err)
		return
	}
	var sim float64
	err = e.gate(ctx, func(ctx context.Context) error {
		var err error
		sim, err = e.Vision.CompareScreenshots(ctx, officialURL, candidateURL)
		return err
	})
	if err != nil {
		e.logProviderErr("vision", err)
		return
	}
	sim = clamp(sim)
	a.VisualSimilarityScore = &sim
	a.VisualStatus = threats.VisualComputed
}

func (e *Engine) intent(ctx context.Context, ev threats.Evidence, b *brands.Brand, a *threats.Analysis) {
	h := Heuristic(ev)
	a.PhishingIntentScore = h.Score
	a.Signals = h.Signals

	page := h.primary
	if e.Intent == nil || page == nil || page.Text == "" {
		return
	}
	req := ai.IntentRequest{URL: page.URL, Title: page.Title, Text: page.Text}
	if b != nil {
		req.BrandName, req.BrandDomain = b.Name, b.PrimaryDomain
	}
	var res *ai.IntentResult
	err := e.gate(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.Intent.ClassifyIntent(ctx, req)
		return err
	})
	if err != nil || res == nil {
		if err != nil {
			e.logProviderErr("intent", err)
		}
		return
	}
	a.PhishingIntentScore = clamp(res.Score)
	a.IntentClass = res.Class
	a.IntentConfidence = clamp(res.Confidence)
	a.IntentRationale = res.Rationale
	a.Signals = union(a.Signals, res.Signals)
	a.IntentSource = threats.IntentOpenAI
}

func (e *Engine) gate(ctx context.Context, fn func(context.Context) error) error {
	if e.AI == nil {
		return fn(ctx)
	}
	return e.AI.Do(ctx, fn)
}

func (e *Engine) logProviderErr(provider string, err error) {
	if errors.Is(err, ai.ErrQuotaExceeded) {
		e.log().Warn("ai quota exceeded, using heuristic result", "provider", provider)
		return
	}
	e.log().Warn("ai provider failed, using heuristic result", "provider", provider, "error", err)
}

func (e *Engine) log() *slog.Logger { return logging.OrDefault(e.Log) }

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
