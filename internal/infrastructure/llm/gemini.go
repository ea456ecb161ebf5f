package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"MarketScanner/internal/config"
	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// Gemini implements ports.CompletionProvider with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ ports.CompletionProvider = (*Gemini)(nil)

// NewGemini fails when the key is missing.
func NewGemini(ctx context.Context, cfg config.ProviderConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", domain.ErrProviderUnavailable)
	}

	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	gen := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(safePrompt(req.System), genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(maxTokens(req.MaxTokens)),
	}
	if req.JSON {
		gen.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), gen)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini completion: empty response")
	}
	return text, nil
}
