package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"trendscout/researchservice/internal/research"
)

const (
	defaultModel        = "gpt-4.1-mini"
	defaultSystemPrompt = "You are a video content strategist. Answer with concise, concrete ideas, one per line, no preamble."
)

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Client       *http.Client
}

// Client generates text through any OpenAI-compatible chat completions
// endpoint. Retries are left to the caller's session policy.
type Client struct {
	client       openai.Client
	model        string
	systemPrompt string
	enabled      bool
}

func NewClient(cfg Config) *Client {
	apiKey := strings.TrimSpace(cfg.APIKey)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
		enabled:      apiKey != "",
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", research.ErrAssistantUnavailable
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(prompt),
		},
		Model:       c.model,
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", research.ErrAssistantRateLimited, err)
		}
		return "", fmt.Errorf("assistant completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", research.ErrAssistantUnavailable)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
