package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tdr-agent/internal/types"
)

// executeCommand runs a command and returns its output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

// writeSettings creates a settings file pointing at the test catalog and
// clears credentials from the environment
func writeSettings(t *testing.T, hostname string) string {
	t.Helper()
	t.Setenv("TDR_HOSTNAME", hostname)
	t.Setenv("TDR_API_TOKEN", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	catalogPath, err := filepath.Abs(filepath.Join("..", "catalog", "testdata", "openapi.json"))
	require.NoError(t, err)

	dir := t.TempDir()
	settings := fmt.Sprintf(`catalog:
  source: %q
runtime:
  file: %q
reporting:
  output_dir: %q
  format: [json, yaml]
logging:
  level: error
`, catalogPath, filepath.Join(dir, "tdr_config.json"), filepath.Join(dir, "reports"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settings), 0644))
	return path
}

func TestRootCommand_Help(t *testing.T) {
	out, err := executeCommand(NewRootCmd(), "--help")
	require.NoError(t, err)

	for _, name := range []string{"serve", "resolve", "batch", "mcp", "endpoints", "version"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "--settings")
	assert.Contains(t, out, "--log-level")
}

func TestRootCommand_UnknownFlag(t *testing.T) {
	_, err := executeCommand(NewRootCmd(), "resolve", "--nope", "q")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(NewRootCmd(), "version")
	require.NoError(t, err)
	assert.Equal(t, "tdr-agent dev\n", out)
}

func TestResolve(t *testing.T) {
	settings := writeSettings(t, "tdr.example.com")

	out, err := executeCommand(NewRootCmd(), "--settings", settings, "resolve", "Show", "me", "the", "top", "5", "risky", "devices")
	require.NoError(t, err)

	var result types.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, types.MethodRuleBased, result.ProcessingMethod)
	assert.Equal(t, "GET /threats/devices/", result.Endpoint)
	assert.Equal(t, "Show me the top 5 risky devices", result.NaturalLanguageQuery)
	require.NotNil(t, result.APIRequest)
	assert.Equal(t, "https://tdr.example.com", result.APIRequest.BaseURL)
}

func TestResolve_YAML(t *testing.T) {
	settings := writeSettings(t, "tdr.example.com")

	out, err := executeCommand(NewRootCmd(), "--settings", settings, "resolve", "-o", "yaml", "organization summary")
	require.NoError(t, err)
	assert.Contains(t, out, "processing_method: rule_based")
	assert.Contains(t, out, "endpoint: GET /threats/org/summary/")
}

func TestResolve_Failure(t *testing.T) {
	settings := writeSettings(t, "tdr.example.com")

	out, err := executeCommand(NewRootCmd(), "--settings", settings, "resolve", "--execute", "quelle heure est-il")
	require.NoError(t, err)

	var result types.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, types.MethodFailed, result.ProcessingMethod)
	assert.Len(t, result.Suggestions, 6)
}

func TestResolve_BadOutput(t *testing.T) {
	_, err := executeCommand(NewRootCmd(), "resolve", "-o", "xml", "q")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestResolve_Execute(t *testing.T) {
	var gotURI, gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI, gotKey = r.URL.RequestURI(), r.Header.Get("X-API-KEY")
		_, _ = w.Write([]byte(`{"users": ["alice"]}`))
	}))
	defer upstream.Close()

	settings := writeSettings(t, upstream.URL)
	t.Setenv("TDR_API_TOKEN", "tok")

	out, err := executeCommand(NewRootCmd(), "--settings", settings, "resolve", "-x", "top 3 risky users")
	require.NoError(t, err)

	var got executed
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, map[string]any{"users": []any{"alice"}}, got.Response)
	assert.Equal(t, "/threats/users?limit=3", gotURI)
	assert.Equal(t, "tok", gotKey)
}

func TestEndpoints(t *testing.T) {
	settings := writeSettings(t, "h")

	out, err := executeCommand(NewRootCmd(), "--settings", settings, "endpoints")
	require.NoError(t, err)
	assert.Contains(t, out, "ENDPOINT")
	assert.Contains(t, out, "GET /threats/users/")
	assert.Contains(t, out, "List risky users")
}

func TestBatch(t *testing.T) {
	settings := writeSettings(t, "tdr.example.com")
	input := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(input, []byte("# smoke\nlist risky devices\nquelle heure est-il\n"), 0644))

	out, err := executeCommand(NewRootCmd(), "--settings", settings, "batch", "--input", input, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Resolved 2 queries: 1 rule-based, 0 model-assisted, 1 failed")
	assert.Contains(t, out, ".json")
	assert.Contains(t, out, ".yaml")

	reports, err := filepath.Glob(filepath.Join(filepath.Dir(settings), "reports", "report_*"))
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestBatch_RequiresInput(t *testing.T) {
	_, err := executeCommand(NewRootCmd(), "batch")
	assert.ErrorIs(t, err, ErrUsage)
}
