package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/brandsentry/internal/domain/ai"
)

// maxPageChars bounds the page text sent to the model.
const maxPageChars = 6000

// IntentSystemPrompt provides strict directions and schema for JSON output.
func IntentSystemPrompt() string {
	return `You are a brand-protection analyst. Decide whether a web page impersonates the named brand to steal credentials, payment data or personal information. Produce one valid JSON object only (no markdown, no commentary, no code fences).

Requirements:
- intent_class is one of: credential_harvesting, payment_fraud, malware_delivery, brand_impersonation, parked, benign.
- score is the phishing likelihood in [0,1]; confidence is your certainty in [0,1].
- signals is a short list of snake_case indicators you observed (e.g. fake_login, urgency_language, brand_logo_misuse).
- rationale is one or two sentences.

Schema:
{
  "intent_class": "<string>",
  "score": 0.0,
  "confidence": 0.0,
  "signals": ["<string>"],
  "rationale": "<string>"
}`
}

// IntentUserPrompt builds the user message around the fetched page.
func IntentUserPrompt(req ai.IntentRequest) string {
	text := req.Text
	if len(text) > maxPageChars {
		text = text[:maxPageChars]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Brand: %s (official domain: %s)\n", req.BrandName, req.BrandDomain)
	fmt.Fprintf(&b, "Page URL: %s\n", req.URL)
	fmt.Fprintf(&b, "Page title: %s\n", req.Title)
	b.WriteString("Page text:\n")
	b.WriteString(text)
	return b.String()
}
