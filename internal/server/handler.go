package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tdr-agent/internal/config"
	"tdr-agent/internal/executor"
	"tdr-agent/internal/explain"
	"tdr-agent/internal/pipeline"
)

// maxBodyBytes bounds JSON request bodies and proxied payloads
const maxBodyBytes = 10 << 20

// Handler serves the JSON API
type Handler struct {
	pipeline  *pipeline.Pipeline
	store     *config.Store
	forwarder *executor.Forwarder
	explainer *explain.Explainer
}

// NewHandler creates a handler over its collaborators
func NewHandler(p *pipeline.Pipeline, store *config.Store, forwarder *executor.Forwarder, explainer *explain.Explainer) *Handler {
	return &Handler{
		pipeline:  p,
		store:     store,
		forwarder: forwarder,
		explainer: explainer,
	}
}

// runtime returns the snapshot attached by withRuntime
func (h *Handler) runtime(r *http.Request) config.Runtime {
	if rt, ok := config.RuntimeFrom(r.Context()); ok {
		return rt
	}
	return h.store.Snapshot()
}

type queryRequest struct {
	Query string `json:"query"`
}

// Query resolves a natural-language query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	writeJSON(w, http.StatusOK, h.pipeline.Resolve(r.Context(), query))
}

type endpointView struct {
	Key         string `json:"key"`
	Path        string `json:"path"`
	Method      string `json:"method"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// Endpoints lists the catalog
func (h *Handler) Endpoints(w http.ResponseWriter, r *http.Request) {
	endpoints := h.pipeline.Catalog().Endpoints()
	out := make([]endpointView, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, endpointView{
			Key:         ep.Key(),
			Path:        ep.Path,
			Method:      ep.Method,
			Summary:     ep.Summary,
			Description: ep.Description,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Suggestions returns the example queries
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": pipeline.Suggestions()})
}

// GetConfig returns the current runtime configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot().View())
}

// UpdateConfig replaces the runtime configuration and persists it
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req config.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rt, saved, err := h.store.Update(req)
	if errors.Is(err, config.ErrHostnameRequired) {
		writeError(w, http.StatusBadRequest, "Hostname is required")
		return
	}
	if err != nil {
		slog.Error("failed to update configuration", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	slog.Info("configuration updated",
		"hostname", rt.Hostname,
		"api_token_set", rt.APIToken != "",
		"model_key_set", rt.HasModelCredential(),
		"provider", rt.ModelProvider,
		"model", rt.ModelName,
	)

	message := "Configuration updated successfully"
	if saved {
		message += " and saved to file"
	} else {
		message += " (but failed to save to file)"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       message,
		"config":        rt.View(),
		"saved_to_file": saved,
	})
}

// hop-by-hop and framing headers are not relayed
var skipRelayHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
}

// Proxy forwards a call to the threat API and relays the response verbatim
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	resp, err := h.forwarder.Forward(r.Context(), r.Method, r.PathValue("path"), r.URL.RawQuery, body, h.runtime(r))
	if err != nil {
		slog.Error("proxy request failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Proxy request failed: %v", err))
		return
	}

	for key, values := range resp.Header {
		if skipRelayHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// Explain asks the model to describe an API response
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var req explain.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	explanation, err := h.explainer.Explain(r.Context(), req)
	if errors.Is(err, explain.ErrPromptRequired) {
		writeError(w, http.StatusBadRequest, "No prompt provided")
		return
	}
	if errors.Is(err, explain.ErrInvalidFilter) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   err.Error(),
			"success": false,
		})
		return
	}
	if err != nil {
		slog.Error("explanation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"success": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"explanation": explanation,
		"success":     true,
	})
}

// TestAI checks model configuration and connectivity
func (h *Handler) TestAI(w http.ResponseWriter, r *http.Request) {
	rt := h.runtime(r)
	status := map[string]any{
		"has_api_key": rt.HasModelCredential(),
		"model":       rt.ModelName,
		"base_url":    rt.ModelBaseURL,
	}

	if !rt.HasModelCredential() {
		status["error"] = explain.ErrNoCredential.Error()
		writeJSON(w, http.StatusBadRequest, status)
		return
	}

	reply, err := h.explainer.Ping(r.Context())
	if err != nil {
		slog.Error("AI test failed", "error", err)
		status["error"] = fmt.Sprintf("AI test failed: %v", err)
		status["success"] = false
		writeJSON(w, http.StatusInternalServerError, status)
		return
	}

	status["success"] = true
	status["test_response"] = reply
	status["message"] = "AI configuration and connectivity test successful"
	writeJSON(w, http.StatusOK, status)
}

// TestProxy checks threat API connectivity
func (h *Handler) TestProxy(w http.ResponseWriter, r *http.Request) {
	result, err := h.forwarder.Probe(r.Context(), h.runtime(r))
	if err != nil {
		slog.Error("proxy test failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": fmt.Sprintf("Proxy test failed: %v", err),
			"url":   result.URL,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Proxy test successful",
		"status":           result.Status,
		"url":              result.URL,
		"response_preview": result.Preview,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
