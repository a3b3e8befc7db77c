package server

import (
	"net/http"

	"tdr-agent/internal/config"
)

// NewMux registers every API route and wraps the mux in middleware
func NewMux(h *Handler, store *config.Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/query", h.Query)
	mux.HandleFunc("GET /api/endpoints", h.Endpoints)
	mux.HandleFunc("GET /api/suggestions", h.Suggestions)
	mux.HandleFunc("GET /api/config", h.GetConfig)
	mux.HandleFunc("POST /api/config", h.UpdateConfig)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		mux.HandleFunc(method+" /api/proxy/{path...}", h.Proxy)
	}

	mux.HandleFunc("POST /api/ai-explain", h.Explain)
	mux.HandleFunc("GET /api/test-ai", h.TestAI)
	mux.HandleFunc("GET /api/test-proxy", h.TestProxy)

	return requestLog(cors(withRuntime(store, mux)))
}
