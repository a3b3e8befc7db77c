package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(originalDir)
	require.NoError(t, os.Chdir(tmpDir))

	s, err := LoadSettings("")
	require.NoError(t, err)

	assert.Equal(t, ":5000", s.Server.Addr)
	assert.Equal(t, "openapi.json", s.Catalog.Source)
	assert.Equal(t, "tdr_config.json", s.Runtime.File)
	assert.Equal(t, 30*time.Second, s.ModelTimeout())
	assert.Equal(t, 30*time.Second, s.ProxyTimeout())
	assert.Equal(t, 4, s.Batch.Workers)
	assert.Equal(t, []string{"json"}, s.Reporting.Format)
	assert.Equal(t, "info", s.Logging.Level)
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: "127.0.0.1:9000"
catalog:
  source: https://example.com/openapi.json
runtime:
  file: /tmp/tdr.json
  watch: true
model:
  timeout: 5
  max_tokens: 512
reporting:
  format: [json, yaml]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", s.Server.Addr)
	assert.Equal(t, "https://example.com/openapi.json", s.Catalog.Source)
	assert.Equal(t, "/tmp/tdr.json", s.Runtime.File)
	assert.True(t, s.Runtime.Watch)
	assert.Equal(t, 5*time.Second, s.ModelTimeout())
	assert.Equal(t, 512, s.Model.MaxTokens)
	assert.Equal(t, []string{"json", "yaml"}, s.Reporting.Format)
	assert.Equal(t, "debug", s.Logging.Level)
	// unset sections still get defaults
	assert.Equal(t, 30, s.Proxy.Timeout)
}

func TestLoadSettings_Errors(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))
	_, err = LoadSettings(path)
	assert.Error(t, err)
}

func TestRuntime_APIBaseURL(t *testing.T) {
	assert.Equal(t, "https://localhost:8000", Runtime{Hostname: "localhost:8000"}.APIBaseURL())
	assert.Equal(t, "http://10.0.0.1", Runtime{Hostname: "http://10.0.0.1"}.APIBaseURL())
	assert.Equal(t, "https://tdr.example.com", Runtime{Hostname: "https://tdr.example.com"}.APIBaseURL())
}

func TestRuntime_Headers(t *testing.T) {
	h := Runtime{}.Headers()
	assert.Equal(t, map[string]string{"Content-Type": "application/json", "Accept": "application/json"}, h)

	h = Runtime{APIToken: "secret"}.Headers()
	assert.Equal(t, "secret", h["X-API-KEY"])
}

func TestRecord_Overlay(t *testing.T) {
	base := Runtime{
		Hostname:      "base-host",
		APIToken:      "base-token",
		ModelAPIKey:   "base-key",
		ModelProvider: "deepseek",
		ModelName:     "base-model",
		ModelBaseURL:  "https://base",
	}

	tests := []struct {
		name string
		json string
		want Runtime
	}{
		{
			name: "empty record keeps base",
			json: `{}`,
			want: base,
		},
		{
			name: "new names",
			json: `{"hostname": "h", "api_token": "t", "ai_provider": "openai",
				"openrouter_api_key": "k", "openrouter_model": "openai/gpt-4o", "openrouter_base_url": "https://or"}`,
			want: Runtime{Hostname: "h", APIToken: "t", ModelAPIKey: "k", ModelProvider: "openai", ModelName: "openai/gpt-4o", ModelBaseURL: "https://or"},
		},
		{
			name: "legacy names are a fallback",
			json: `{"openai_api_key": "legacy-key", "openai_model": "gpt-4", "openai_base_url": "https://legacy"}`,
			want: Runtime{Hostname: "base-host", APIToken: "base-token", ModelAPIKey: "legacy-key", ModelProvider: "deepseek", ModelName: "gpt-4", ModelBaseURL: "https://legacy"},
		},
		{
			name: "new names win over legacy",
			json: `{"openrouter_api_key": "new-key", "openai_api_key": "legacy-key"}`,
			want: Runtime{Hostname: "base-host", APIToken: "base-token", ModelAPIKey: "new-key", ModelProvider: "deepseek", ModelName: "base-model", ModelBaseURL: "https://base"},
		},
		{
			name: "empty new name falls back to legacy",
			json: `{"openrouter_model": "", "openai_model": "legacy-model"}`,
			want: Runtime{Hostname: "base-host", APIToken: "base-token", ModelAPIKey: "base-key", ModelProvider: "deepseek", ModelName: "legacy-model", ModelBaseURL: "https://base"},
		},
		{
			name: "present empty token clears it",
			json: `{"api_token": ""}`,
			want: Runtime{Hostname: "base-host", ModelAPIKey: "base-key", ModelProvider: "deepseek", ModelName: "base-model", ModelBaseURL: "https://base"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tdr_config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.json), 0644))

			rec, err := LoadRecord(path)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.want, rec.Overlay(base))
		})
	}
}

func TestLoadRecord_Missing(t *testing.T) {
	rec, err := LoadRecord(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateRequest_Runtime(t *testing.T) {
	tests := []struct {
		name    string
		req     UpdateRequest
		want    Runtime
		wantErr error
	}{
		{
			name:    "hostname required",
			req:     UpdateRequest{Hostname: "  "},
			wantErr: ErrHostnameRequired,
		},
		{
			name: "defaults",
			req:  UpdateRequest{Hostname: " tdr.local "},
			want: Runtime{Hostname: "tdr.local", ModelProvider: DefaultProvider, ModelName: DefaultModel, ModelBaseURL: DefaultModelBaseURL},
		},
		{
			name: "legacy aliases",
			req:  UpdateRequest{Hostname: "h", OpenAIAPIKey: "k", OpenAIModel: "deepseek/deepseek-r1", OpenAIBaseURL: "https://alt"},
			want: Runtime{Hostname: "h", ModelAPIKey: "k", ModelProvider: DefaultProvider, ModelName: "deepseek/deepseek-r1", ModelBaseURL: "https://alt"},
		},
		{
			name: "openai gpt model is prefixed",
			req:  UpdateRequest{Hostname: "h", AIProvider: "openai", OpenRouterModel: "gpt-4o-mini"},
			want: Runtime{Hostname: "h", ModelProvider: "openai", ModelName: "openai/gpt-4o-mini", ModelBaseURL: DefaultModelBaseURL},
		},
		{
			name: "openai unknown model falls back",
			req:  UpdateRequest{Hostname: "h", AIProvider: "openai", OpenRouterModel: "claude"},
			want: Runtime{Hostname: "h", ModelProvider: "openai", ModelName: DefaultOpenAIModel, ModelBaseURL: DefaultModelBaseURL},
		},
		{
			name: "deepseek wrong model falls back",
			req:  UpdateRequest{Hostname: "h", AIProvider: "deepseek", OpenRouterModel: "gpt-4"},
			want: Runtime{Hostname: "h", ModelProvider: "deepseek", ModelName: DefaultModel, ModelBaseURL: DefaultModelBaseURL},
		},
		{
			name: "gemini model untouched",
			req:  UpdateRequest{Hostname: "h", AIProvider: "gemini", OpenRouterModel: "gemini-2.0-flash"},
			want: Runtime{Hostname: "h", ModelProvider: "gemini", ModelName: "gemini-2.0-flash", ModelBaseURL: DefaultModelBaseURL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Runtime()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_UpdatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tdr_config.json")
	s := NewStore(Runtime{Hostname: DefaultHostname}, path)

	rt, saved, err := s.Update(UpdateRequest{Hostname: "tdr.example.com", APIToken: "tok", OpenRouterAPIKey: "key"})
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, rt, s.Snapshot())
	assert.Equal(t, "https://tdr.example.com", s.Snapshot().APIBaseURL())

	fresh := NewStore(Runtime{}, path)
	found, err := fresh.LoadFile()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rt, fresh.Snapshot())
}

func TestStore_UpdateRejectsWithoutSwap(t *testing.T) {
	s := NewStore(Runtime{Hostname: "keep"}, "")
	_, _, err := s.Update(UpdateRequest{})
	assert.ErrorIs(t, err, ErrHostnameRequired)
	assert.Equal(t, "keep", s.Snapshot().Hostname)
}

func TestStore_UpdateWithoutPath(t *testing.T) {
	s := NewStore(Runtime{}, "")
	_, saved, err := s.Update(UpdateRequest{Hostname: "h"})
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, "h", s.Snapshot().Hostname)
}

func TestStore_SnapshotsAreNeverTorn(t *testing.T) {
	s := NewStore(Runtime{Hostname: "a", APIToken: "a"}, "")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rt := s.Snapshot()
				if rt.Hostname != rt.APIToken {
					t.Errorf("torn snapshot: %+v", rt)
					return
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		v := "a"
		if i%2 == 0 {
			v = "b"
		}
		s.Replace(Runtime{Hostname: v, APIToken: v})
	}
	close(stop)
	wg.Wait()
}

func TestStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tdr_config.json")
	s := NewStore(Runtime{Hostname: "before"}, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"hostname": "after"}`), 0644))

	assert.Eventually(t, func() bool {
		return s.Snapshot().Hostname == "after"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRuntimeContext(t *testing.T) {
	_, ok := RuntimeFrom(context.Background())
	assert.False(t, ok)

	ctx := WithRuntime(context.Background(), Runtime{Hostname: "ctx"})
	rt, ok := RuntimeFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "ctx", rt.Hostname)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TDR_HOSTNAME", "env-host")
	t.Setenv("TDR_API_TOKEN", "env-token")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("OPENAI_BASE_URL", "")

	rt := FromEnv()
	assert.Equal(t, "env-host", rt.Hostname)
	assert.Equal(t, "env-token", rt.APIToken)
	assert.Equal(t, "env-key", rt.ModelAPIKey)
	assert.Equal(t, DefaultProvider, rt.ModelProvider)
	assert.Equal(t, DefaultModel, rt.ModelName)
	assert.Equal(t, DefaultModelBaseURL, rt.ModelBaseURL)
}
