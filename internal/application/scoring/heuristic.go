package scoring

import (
	"strings"

	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

const (
	loginWeight       = 0.40
	paymentWeight     = 0.25
	mentionsWeight    = 0.10
	minMentions       = 3
	perElementWeight  = 0.05
	maxElementsWeight = 0.20
)

type keywordGroup struct {
	signal string
	weight float64
	terms  []string
}

var keywordGroups = []keywordGroup{
	{"credential_language", 0.12, []string{"password", "sign in", "log in", "verify your account", "username", "one-time code", "security question"}},
	{"urgency_language", 0.10, []string{"urgent", "immediately", "suspended", "within 24 hours", "act now", "account locked", "will be closed"}},
	{"payment_language", 0.10, []string{"credit card", "card number", "cvv", "billing", "bank account", "wire transfer", "payment details"}},
}

// HeuristicResult is the indicator-based intent score.
type HeuristicResult struct {
	Score   float64
	Signals []string

	primary *threats.HTMLSnapshot
}

// Heuristic sums weighted indicators across all captured pages, clamped to [0,1].
func Heuristic(ev threats.Evidence) HeuristicResult {
	var (
		res      HeuristicResult
		login    bool
		payment  bool
		mentions int
		elements []string
		text     strings.Builder
	)
	for i := range ev.HTML {
		h := &ev.HTML[i]
		if res.primary == nil && h.Text != "" {
			res.primary = h
		}
		login = login || h.Page.HasLoginForm
		payment = payment || h.Page.HasPaymentForm
		mentions += h.Page.BrandMentions
		elements = union(elements, h.Page.SuspiciousElements)
		text.WriteString(strings.ToLower(h.Title))
		text.WriteByte(' ')
		text.WriteString(strings.ToLower(h.Text))
		text.WriteByte(' ')
	}
	if res.primary == nil && len(ev.HTML) > 0 {
		res.primary = &ev.HTML[0]
	}

	score := 0.0
	if login {
		score += loginWeight
		res.Signals = append(res.Signals, "login_form")
	}
	if payment {
		score += paymentWeight
		res.Signals = append(res.Signals, "payment_form")
	}
	if mentions >= minMentions {
		score += mentionsWeight
		res.Signals = append(res.Signals, "brand_mentions")
	}
	if n := len(elements); n > 0 {
		score += minFloat(float64(n)*perElementWeight, maxElementsWeight)
		for _, el := range elements {
			res.Signals = append(res.Signals, "suspicious:"+el)
		}
	}
	body := text.String()
	for _, g := range keywordGroups {
		for _, term := range g.terms {
			if strings.Contains(body, term) {
				score += g.weight
				res.Signals = append(res.Signals, g.signal)
				break
			}
		}
	}
	res.Score = clamp(score)
	return res
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
