package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/brandsentry/internal/domain/ai"
)

func TestIntentUserPrompt_TruncatesText(t *testing.T) {
	p := IntentUserPrompt(ai.IntentRequest{
		BrandName: "Acme", BrandDomain: "acme.com", URL: "http://acm.com", Title: "Login",
		Text: strings.Repeat("x", maxPageChars+500),
	})
	assert.Contains(t, p, "Brand: Acme (official domain: acme.com)")
	assert.Contains(t, p, "Page URL: http://acm.com")
	assert.Equal(t, maxPageChars, strings.Count(p, "x"))
}

func TestSystemPromptsDescribeSchema(t *testing.T) {
	assert.Contains(t, IntentSystemPrompt(), `"intent_class"`)
	assert.Contains(t, VisionSystemPrompt(), `"similarity"`)
}
