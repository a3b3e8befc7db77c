package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider names understood by the model client factory
const (
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Defaults used when neither the environment nor the record sets a value
const (
	DefaultHostname     = "localhost:8000"
	DefaultProvider     = ProviderDeepSeek
	DefaultModel        = "deepseek/deepseek-chat"
	DefaultModelBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIModel  = "openai/gpt-4o-mini"
)

// ErrHostnameRequired is returned when an update omits the hostname
var ErrHostnameRequired = errors.New("hostname is required")

// Runtime is one immutable snapshot of the runtime configuration
type Runtime struct {
	Hostname      string
	APIToken      string
	ModelAPIKey   string
	ModelProvider string
	ModelName     string
	ModelBaseURL  string
}

// APIBaseURL derives the threat API base URL from the hostname
func (r Runtime) APIBaseURL() string {
	if strings.HasPrefix(r.Hostname, "http://") || strings.HasPrefix(r.Hostname, "https://") {
		return r.Hostname
	}
	return "https://" + r.Hostname
}

// Headers returns the static headers for threat API calls
func (r Runtime) Headers() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if r.APIToken != "" {
		headers["X-API-KEY"] = r.APIToken
	}
	return headers
}

// HasModelCredential reports whether model calls can be attempted
func (r Runtime) HasModelCredential() bool {
	return r.ModelAPIKey != ""
}

// Record is the persisted form of the runtime configuration. The openai_*
// fields are legacy names read only when the openrouter_* ones are empty.
type Record struct {
	Hostname          *string `json:"hostname,omitempty"`
	APIToken          *string `json:"api_token,omitempty"`
	APIBaseURL        string  `json:"api_base_url,omitempty"`
	AIProvider        *string `json:"ai_provider,omitempty"`
	OpenRouterAPIKey  string  `json:"openrouter_api_key,omitempty"`
	OpenRouterModel   string  `json:"openrouter_model,omitempty"`
	OpenRouterBaseURL string  `json:"openrouter_base_url,omitempty"`

	OpenAIAPIKey  *string `json:"openai_api_key,omitempty"`
	OpenAIModel   *string `json:"openai_model,omitempty"`
	OpenAIBaseURL *string `json:"openai_base_url,omitempty"`
}

// View is the JSON shape reported by the admin API and written to disk
type View struct {
	Hostname          string `json:"hostname"`
	APIToken          string `json:"api_token"`
	APIBaseURL        string `json:"api_base_url"`
	AIProvider        string `json:"ai_provider"`
	OpenRouterAPIKey  string `json:"openrouter_api_key"`
	OpenRouterModel   string `json:"openrouter_model"`
	OpenRouterBaseURL string `json:"openrouter_base_url"`
}

// View returns the flat record for r
func (r Runtime) View() View {
	return View{
		Hostname:          r.Hostname,
		APIToken:          r.APIToken,
		APIBaseURL:        r.APIBaseURL(),
		AIProvider:        r.ModelProvider,
		OpenRouterAPIKey:  r.ModelAPIKey,
		OpenRouterModel:   r.ModelName,
		OpenRouterBaseURL: r.ModelBaseURL,
	}
}

// Overlay applies a persisted record on top of base. Missing fields keep the
// base value; empty new-style model fields fall back to the legacy names.
func (rec Record) Overlay(base Runtime) Runtime {
	out := base
	if rec.Hostname != nil {
		out.Hostname = *rec.Hostname
	}
	if rec.APIToken != nil {
		out.APIToken = *rec.APIToken
	}
	if rec.AIProvider != nil {
		out.ModelProvider = *rec.AIProvider
	}
	out.ModelAPIKey = pick(rec.OpenRouterAPIKey, rec.OpenAIAPIKey, base.ModelAPIKey)
	out.ModelName = pick(rec.OpenRouterModel, rec.OpenAIModel, base.ModelName)
	out.ModelBaseURL = pick(rec.OpenRouterBaseURL, rec.OpenAIBaseURL, base.ModelBaseURL)
	return out
}

// pick returns current if set, else legacy if present, else fallback
func pick(current string, legacy *string, fallback string) string {
	if current != "" {
		return current
	}
	if legacy != nil {
		return *legacy
	}
	return fallback
}

// LoadRecord reads a persisted record. It returns nil and no error when the
// file does not exist.
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &rec, nil
}

// SaveRecord writes the runtime configuration to path
func SaveRecord(rt Runtime, path string) error {
	data, err := json.MarshalIndent(rt.View(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// write to a sibling temp file and rename so readers never see a partial record
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UpdateRequest is the body of an administrative configuration update
type UpdateRequest struct {
	Hostname          string `json:"hostname"`
	APIToken          string `json:"api_token"`
	AIProvider        string `json:"ai_provider"`
	OpenRouterAPIKey  string `json:"openrouter_api_key"`
	OpenRouterModel   string `json:"openrouter_model"`
	OpenRouterBaseURL string `json:"openrouter_base_url"`

	OpenAIAPIKey  string `json:"openai_api_key"`
	OpenAIModel   string `json:"openai_model"`
	OpenAIBaseURL string `json:"openai_base_url"`
}

// Runtime validates the request and returns the configuration it describes
func (u UpdateRequest) Runtime() (Runtime, error) {
	rt := Runtime{
		Hostname:      strings.TrimSpace(u.Hostname),
		APIToken:      strings.TrimSpace(u.APIToken),
		ModelProvider: orDefault(strings.TrimSpace(u.AIProvider), DefaultProvider),
		ModelAPIKey:   firstNonEmpty(u.OpenRouterAPIKey, u.OpenAIAPIKey),
		ModelName:     orDefault(firstNonEmpty(u.OpenRouterModel, u.OpenAIModel), DefaultModel),
		ModelBaseURL:  orDefault(firstNonEmpty(u.OpenRouterBaseURL, u.OpenAIBaseURL), DefaultModelBaseURL),
	}
	if rt.Hostname == "" {
		return Runtime{}, ErrHostnameRequired
	}
	rt.ModelName = NormalizeModel(rt.ModelProvider, rt.ModelName)
	return rt, nil
}

// NormalizeModel forces the routed model name format each provider expects
func NormalizeModel(provider, model string) string {
	switch provider {
	case ProviderOpenAI:
		if strings.HasPrefix(model, "openai/") {
			return model
		}
		if strings.HasPrefix(model, "gpt-") {
			return "openai/" + model
		}
		return DefaultOpenAIModel
	case ProviderDeepSeek:
		if strings.HasPrefix(model, "deepseek/") {
			return model
		}
		return DefaultModel
	}
	return model
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type runtimeKey struct{}

// WithRuntime returns a context carrying rt
func WithRuntime(ctx context.Context, rt Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom returns the snapshot carried by ctx
func RuntimeFrom(ctx context.Context) (Runtime, bool) {
	rt, ok := ctx.Value(runtimeKey{}).(Runtime)
	return rt, ok
}
