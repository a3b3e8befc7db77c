package executor

import (
	"context"
	"net/http"
	"time"

	"tdr-agent/internal/config"
)

const (
	probePath    = "/threats/users"
	probeTimeout = 10 * time.Second
	previewRunes = 200
)

// ProbeResult reports a connectivity check against the threat API
type ProbeResult struct {
	URL     string `json:"url"`
	Status  int    `json:"status"`
	Preview string `json:"response_preview"`
}

// Probe issues a GET against the user list to check the configured host and
// token. The returned URL is set even when the call fails.
func (f *Forwarder) Probe(ctx context.Context, rt config.Runtime) (ProbeResult, error) {
	result := ProbeResult{URL: rt.APIBaseURL() + probePath}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := f.Forward(ctx, http.MethodGet, probePath, "", nil, rt)
	if err != nil {
		return result, err
	}

	result.Status = resp.Status
	result.Preview = preview(string(resp.Body))
	return result, nil
}

func preview(body string) string {
	if body == "" {
		return "No response body"
	}
	runes := []rune(body)
	if len(runes) > previewRunes {
		return string(runes[:previewRunes])
	}
	return body
}
