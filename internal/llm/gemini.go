package llm

import (
	"context"
	"fmt"
	"net/http"

	genai "google.golang.org/genai"
)

// GeminiClient calls the Gemini API directly
type GeminiClient struct {
	config *Config
	cli    *genai.Client
}

// NewGeminiClient creates a Gemini client for cfg
func NewGeminiClient(ctx context.Context, cfg *Config) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{config: cfg, cli: cli}, nil
}

// Complete implements ChatClient
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	temperature := float32(g.config.Temperature)
	resp, err := g.cli.Models.GenerateContent(ctx, g.config.Model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.User}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoChoices
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
