package ai

import "context"

// IntentRequest is the page context sent to an intent classifier.
type IntentRequest struct {
	BrandName   string
	BrandDomain string
	URL         string
	Title       string
	Text        string
}

// IntentResult is the structured classifier verdict.
type IntentResult struct {
	Class      string   `json:"intent_class"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Signals    []string `json:"signals"`
	Rationale  string   `json:"rationale"`
}

// IntentClassifier scores how likely a page is to be phishing.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
}

// VisualComparer returns a similarity in [0,1] between two screenshot images.
type VisualComparer interface {
	CompareScreenshots(ctx context.Context, officialImageURL, candidateImageURL string) (float64, error)
}
