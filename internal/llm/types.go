package llm

import (
	"context"
	"errors"
)

var (
	// ErrNoChoices is returned when the provider answers without any content
	ErrNoChoices = errors.New("no response from model")

	// ErrUnsupportedProvider is returned by NewClient for unknown providers
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
)

// Request is one single-turn chat call
type Request struct {
	// Operation names the call in logs
	Operation string
	System    string
	User      string
}

// ChatClient sends a system and user message and returns the reply text
type ChatClient interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ChatClientFunc adapts a function to ChatClient
type ChatClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f
func (f ChatClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
