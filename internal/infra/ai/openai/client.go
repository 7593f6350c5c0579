package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/brandsentry/internal/domain/ai"
	"github.com/bryanwahyu/brandsentry/internal/infra/ai/prompt"
)

const (
	maxTokens          = 512
	defaultModel       = "gpt-4o-mini"
	defaultVisionModel = "gpt-4o"
)

type Config struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	VisionModel string `yaml:"vision_model"`
	BaseURL     string `yaml:"base_url"`
}

// Client implements ai.IntentClassifier and ai.VisualComparer.
type Client struct {
	*openai.Client
	Model       string
	VisionModel string
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model, vision := cfg.Model, cfg.VisionModel
	if model == "" {
		model = defaultModel
	}
	if vision == "" {
		vision = defaultVisionModel
	}
	return &Client{Client: openai.NewClientWithConfig(oc), Model: model, VisionModel: vision}
}

// ClassifyIntent asks the model for a structured phishing verdict.
func (c *Client) ClassifyIntent(ctx context.Context, req ai.IntentRequest) (*ai.IntentResult, error) {
	content, err := c.complete(ctx, c.Model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.IntentSystemPrompt()},
		{Role: openai.ChatMessageRoleUser, Content: prompt.IntentUserPrompt(req)},
	})
	if err != nil {
		return nil, err
	}
	var out ai.IntentResult
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("decode intent result: %w", err)
	}
	return &out, nil
}

// CompareScreenshots sends both images to the vision model and returns its similarity.
func (c *Client) CompareScreenshots(ctx context.Context, officialImageURL, candidateImageURL string) (float64, error) {
	content, err := c.complete(ctx, c.VisionModel, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompt.VisionSystemPrompt()},
		{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt.VisionUserPrompt()},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: officialImageURL, Detail: openai.ImageURLDetailLow}},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: candidateImageURL, Detail: openai.ImageURLDetailLow}},
		}},
	})
	if err != nil {
		return 0, err
	}
	var out struct {
		Similarity *float64 `json:"similarity"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return 0, fmt.Errorf("decode vision result: %w", err)
	}
	if out.Similarity == nil {
		return 0, errors.New("vision result missing similarity")
	}
	return *out.Similarity, nil
}

func (c *Client) complete(ctx context.Context, model string, msgs []openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: msgs,
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// mapError turns HTTP 429 into ai.ErrQuotaExceeded.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, reqErr.Err)
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}
