package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"MarketScanner/internal/config"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// Anthropic implements ports.CompletionProvider with the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

var _ ports.CompletionProvider = (*Anthropic)(nil)

// NewAnthropic fails when the key is missing. Endpoint overrides the API base URL.
func NewAnthropic(cfg config.ProviderConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required: %w", domain.ErrProviderUnavailable)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: cfg.Model}, nil
}

func (a *Anthropic) Name() string {
	return "anthropic"
}

func (a *Anthropic) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	user := req.User
	if req.JSON {
		user += "\n\nRespond with a single JSON object and nothing else."
	}

	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(maxTokens(req.MaxTokens)),
		System:      []anthropic.TextBlockParam{{Text: safePrompt(req.System)}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
		Temperature: anthropic.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic completion: no text content")
	}
	return strings.TrimSpace(text.String()), nil
}
