package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tdr-agent/internal/assist"
	"tdr-agent/internal/catalog"
	"tdr-agent/internal/config"
	"tdr-agent/internal/executor"
	"tdr-agent/internal/explain"
	"tdr-agent/internal/llm"
	"tdr-agent/internal/pipeline"
	"tdr-agent/internal/rules"
)

// stubModel replies with a fixed text to every request
type stubModel struct {
	reply string
	err   error
}

func (s *stubModel) factory(ctx context.Context, cfg *llm.Config) (llm.ChatClient, error) {
	return llm.ChatClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return s.reply, s.err
	}), nil
}

type fixture struct {
	api   *httptest.Server
	store *config.Store
	model *stubModel
}

func newFixture(t *testing.T, rt config.Runtime, storePath string) *fixture {
	t.Helper()

	cat, err := catalog.Load(context.Background(), filepath.Join("..", "catalog", "testdata", "openapi.json"))
	require.NoError(t, err)

	model := &stubModel{}
	resolver, err := assist.NewResolver(cat, config.ModelConfig{Timeout: 5}, assist.WithFactory(model.factory))
	require.NoError(t, err)
	explainer, err := explain.New(config.ModelConfig{Timeout: 5}, explain.WithFactory(model.factory))
	require.NoError(t, err)

	store := config.NewStore(rt, storePath)
	p := pipeline.New(cat, rules.NewResolver(), resolver, store)
	h := NewHandler(p, store, executor.NewForwarder(5*time.Second), explainer)

	api := httptest.NewServer(NewMux(h, store))
	t.Cleanup(api.Close)
	return &fixture{api: api, store: store, model: model}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.api.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestQuery(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "tdr.example.com", APIToken: "tok"}, "")

	resp, body := f.do(t, http.MethodPost, "/api/query", `{"query": "Show me the top 5 risky devices"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "GET /threats/devices/", body["endpoint"])
	assert.Equal(t, "rule_based", body["processing_method"])

	apiRequest, ok := body["api_request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/threats/devices", apiRequest["url"])
	assert.Equal(t, "https://tdr.example.com", apiRequest["base_url"])
}

func TestQuery_FailureIsStillOK(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	resp, body := f.do(t, http.MethodPost, "/api/query", `{"query": "quelle heure est-il"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pipeline.FailureMessage, body["error"])
	assert.Len(t, body["suggestions"], 6)
}

func TestQuery_BadInput(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty query", `{"query": "   "}`, "Query is required"},
		{"missing query", `{}`, "Query is required"},
		{"malformed body", `{"query":`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/api/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestQuery_ModelHit(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h", ModelAPIKey: "k", ModelName: "m"}, "")
	f.model.reply = `{"endpoint": "GET /threats/rare-processes/", "parameters": {"limit": 3}, "confidence": 0.7}`

	_, body := f.do(t, http.MethodPost, "/api/query", `{"query": "显示最异常的三个进程"}`)
	assert.Equal(t, "openai", body["processing_method"])
	assert.Equal(t, "GET /threats/rare-processes/", body["endpoint"])
	assert.Equal(t, 0.7, body["confidence"])
	assert.Equal(t, "zh", body["detected_language"])
}

func TestEndpointsAndSuggestions(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	resp, err := http.Get(f.api.URL + "/api/endpoints")
	require.NoError(t, err)
	defer resp.Body.Close()
	var endpoints []endpointView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&endpoints))
	require.NotEmpty(t, endpoints)
	for _, ep := range endpoints {
		assert.Equal(t, ep.Method+" "+ep.Path, ep.Key)
	}

	_, body := f.do(t, http.MethodGet, "/api/suggestions", "")
	assert.Len(t, body["suggestions"], len(pipeline.Suggestions()))
}

func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f := newFixture(t, config.Runtime{Hostname: "old.example.com", ModelProvider: config.ProviderOpenRouter}, path)

	_, body := f.do(t, http.MethodGet, "/api/config", "")
	assert.Equal(t, "old.example.com", body["hostname"])
	assert.Equal(t, "https://old.example.com", body["api_base_url"])

	resp, body := f.do(t, http.MethodPost, "/api/config", `{"hostname": "new.example.com", "api_token": "t", "ai_provider": "openai", "openrouter_api_key": "k", "openrouter_model": "gpt-4o"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Configuration updated successfully and saved to file", body["message"])
	assert.Equal(t, true, body["saved_to_file"])
	cfg, ok := body["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "openai/gpt-4o", cfg["openrouter_model"])

	assert.Equal(t, "new.example.com", f.store.Snapshot().Hostname)
	assert.FileExists(t, path)

	resp, body = f.do(t, http.MethodPost, "/api/config", `{"hostname": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Hostname is required", body["error"])
	assert.Equal(t, "new.example.com", f.store.Snapshot().Hostname)
}

func TestConfig_NotPersisted(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	_, body := f.do(t, http.MethodPost, "/api/config", `{"hostname": "x"}`)
	assert.Equal(t, "Configuration updated successfully (but failed to save to file)", body["message"])
	assert.Equal(t, false, body["saved_to_file"])
}

func TestProxy(t *testing.T) {
	var gotURI, gotKey, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotURI, gotKey, gotBody = r.URL.RequestURI(), r.Header.Get("X-API-KEY"), string(b)
		w.Header().Set("X-Upstream", "1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"proxied":true}`))
	}))
	defer upstream.Close()

	f := newFixture(t, config.Runtime{Hostname: upstream.URL, APIToken: "tok"}, "")

	req, err := http.NewRequest(http.MethodPost, f.api.URL+"/api/proxy/threats/org/summary/?date%5Beq%5D=2024-09-03", bytes.NewBufferString(`{"a":1}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"proxied":true}`, string(raw))
	assert.Equal(t, "1", resp.Header.Get("X-Upstream"))
	assert.Equal(t, "/threats/org/summary/?date%5Beq%5D=2024-09-03", gotURI)
	assert.Equal(t, "tok", gotKey)
	assert.Equal(t, `{"a":1}`, gotBody)
}

func TestProxy_UpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	f := newFixture(t, config.Runtime{Hostname: dead.URL}, "")

	resp, body := f.do(t, http.MethodGet, "/api/proxy/threats/users", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "Proxy request failed")
}

func TestExplain(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h", ModelAPIKey: "k"}, "")
	f.model.reply = "Two users look risky."

	resp, body := f.do(t, http.MethodPost, "/api/ai-explain", `{"prompt": "summarize", "responseData": {"n": 2}, "detected_language": "en"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Two users look risky.", body["explanation"])
	assert.Equal(t, true, body["success"])

	resp, body = f.do(t, http.MethodPost, "/api/ai-explain", `{"responseData": {}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No prompt provided", body["error"])
}

func TestExplain_InvalidFilter(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h", ModelAPIKey: "k"}, "")
	f.model.reply = "unused"

	resp, body := f.do(t, http.MethodPost, "/api/ai-explain", `{"prompt": "summarize", "responseData": {"results": []}, "filter": ".results[["}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "invalid jq expression")
}

func TestExplain_NoCredential(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	resp, body := f.do(t, http.MethodPost, "/api/ai-explain", `{"prompt": "summarize"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "AI API key not configured")
}

func TestTestAI(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h", ModelName: "deepseek/deepseek-chat"}, "")

	resp, body := f.do(t, http.MethodGet, "/api/test-ai", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["has_api_key"])
	assert.Equal(t, "deepseek/deepseek-chat", body["model"])
	assert.Equal(t, "AI API key not configured", body["error"])

	f.store.Replace(config.Runtime{Hostname: "h", ModelAPIKey: "k", ModelName: "m"})
	f.model.reply = explain.PingReply
	resp, body = f.do(t, http.MethodGet, "/api/test-ai", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, explain.PingReply, body["test_response"])

	f.model.err = assert.AnError
	resp, body = f.do(t, http.MethodGet, "/api/test-ai", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "AI test failed")
}

func TestTestProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer upstream.Close()
	f := newFixture(t, config.Runtime{Hostname: upstream.URL}, "")

	resp, body := f.do(t, http.MethodGet, "/api/test-proxy", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Proxy test successful", body["message"])
	assert.Equal(t, float64(http.StatusOK), body["status"])
	assert.Equal(t, upstream.URL+"/threats/users", body["url"])
	assert.Equal(t, "[]", body["response_preview"])

	upstream.Close()
	resp, body = f.do(t, http.MethodGet, "/api/test-proxy", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, upstream.URL+"/threats/users", body["url"])
}

func TestMiddleware(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	resp, _ := f.do(t, http.MethodGet, "/api/suggestions", "")
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, f.api.URL+"/api/query", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set(requestIDHeader, "abc")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "abc", resp.Header.Get(requestIDHeader))
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, config.Runtime{Hostname: "h"}, "")

	resp, _ := f.do(t, http.MethodGet, "/api/query", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
