package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files into the environment. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}
}

// FromEnv seeds a runtime configuration from environment variables
func FromEnv() Runtime {
	return Runtime{
		Hostname:      getEnv("TDR_HOSTNAME", DefaultHostname),
		APIToken:      getEnv("TDR_API_TOKEN", ""),
		ModelAPIKey:   getEnv("OPENROUTER_API_KEY", getEnv("OPENAI_API_KEY", "")),
		ModelProvider: getEnv("AI_PROVIDER", DefaultProvider),
		ModelName:     getEnv("OPENAI_MODEL", DefaultModel),
		ModelBaseURL:  getEnv("OPENAI_BASE_URL", DefaultModelBaseURL),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Store holds the current runtime configuration. Readers take a Snapshot;
// writers replace the whole record, so no reader sees a half-applied update.
type Store struct {
	current atomic.Pointer[Runtime]
	mu      sync.Mutex
	path    string
}

// NewStore creates a store seeded with initial and persisting to path.
// An empty path disables persistence.
func NewStore(initial Runtime, path string) *Store {
	s := &Store{path: path}
	s.current.Store(&initial)
	return s
}

// Path returns the persistence path
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns the current configuration
func (s *Store) Snapshot() Runtime {
	return *s.current.Load()
}

// Replace swaps in rt
func (s *Store) Replace(rt Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&rt)
}

// LoadFile overlays the persisted record, if any, onto the current
// configuration. It reports whether a record was found.
func (s *Store) LoadFile() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	rec, err := LoadRecord(s.path)
	if err != nil {
		return false, err
	}
	if rec == nil {
		slog.Info("configuration file not found, using defaults", "path", s.path)
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := rec.Overlay(*s.current.Load())
	s.current.Store(&next)
	slog.Info("configuration loaded", "path", s.path)
	return true, nil
}

// Update validates req, swaps it in, and persists it. The returned bool
// reports whether the record reached disk; a save failure leaves the new
// configuration active.
func (s *Store) Update(req UpdateRequest) (Runtime, bool, error) {
	rt, err := req.Runtime()
	if err != nil {
		return Runtime{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&rt)

	if s.path == "" {
		return rt, false, nil
	}
	if err := SaveRecord(rt, s.path); err != nil {
		slog.Error("failed to save configuration", "path", s.path, "error", err)
		return rt, false, nil
	}
	slog.Info("configuration saved", "path", s.path)
	return rt, true, nil
}

// Save persists the current configuration
func (s *Store) Save() error {
	if s.path == "" {
		return fmt.Errorf("no configuration path set")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return SaveRecord(*s.current.Load(), s.path)
}
