// Package llm adapts hosted chat-completion APIs to ports.CompletionProvider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"MarketScanner/internal/config"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/infrastructure/httpjson"
	"MarketScanner/internal/ports"
)

const defaultMaxTokens = 2048

// OpenAI implements ports.CompletionProvider backed by OpenAI-compatible chat APIs.
type OpenAI struct {
	endpoint string
	model    string
	client   *httpjson.Client
}

var _ ports.CompletionProvider = (*OpenAI)(nil)

// NewOpenAI builds a client from configuration; a missing key or endpoint is an error.
func NewOpenAI(cfg config.ProviderConfig, httpClient *http.Client) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required: %w", domain.ErrProviderUnavailable)
	}
	if cfg.Endpoint == "" || cfg.Model == "" {
		return nil, errors.New("openai client misconfigured: endpoint and model are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAI{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		client:   httpjson.New(httpClient, httpjson.Bearer(cfg.APIKey)),
	}, nil
}

func (c *OpenAI) Name() string {
	return "openai"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the first choice.
func (c *OpenAI) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(req.System)},
			{Role: "user", Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req.MaxTokens),
	}
	if req.JSON {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	var resp chatResponse
	if err := c.client.Post(ctx, c.endpoint, body, &resp); err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a precise market research assistant."
	}
	return prompt
}

func maxTokens(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
