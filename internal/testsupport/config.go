package testsupport

import (
	"path/filepath"
	"testing"

	"fornax/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.SourceDir = filepath.Join(base, "src")
	cfg.Paths.WorkDir = filepath.Join(base, "tmp")
	cfg.Paths.DestDir = filepath.Join(base, "dest")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Archivematica["aurora"] = config.Archivematica{
		BaseURL:          "http://archivematica.test",
		Username:         "fornax",
		APIKey:           "test-key",
		LocationUUID:     "loc-test",
		ProcessingConfig: "default",
		Version:          "1.13",
		CloseCompleted:   true,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithOrigin adds or replaces an Archivematica profile on the test config.
func WithOrigin(origin string, am config.Archivematica) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Archivematica[origin] = am
	}
}

// WithCleanupURL sets the downstream cleanup endpoint on the test config.
func WithCleanupURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Cleanup.URL = url
	}
}
