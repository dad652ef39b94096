package testsupport

import (
	"path/filepath"
	"testing"

	"loom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.TrainingDir = filepath.Join(base, "training")
	cfg.Engine.BaseURL = "http://engine.test"
	cfg.Engine.APIKey = "test-key"
	cfg.Engine.Username = "loom"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithAPIKey sets the engine API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Engine.APIKey = key
	}
}

// WithRefreshWindows overrides the reconciliation staleness windows.
func WithRefreshWindows(statusMinutes, tableMinutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Refresh.StatusWindowMinutes = statusMinutes
		cfg.Refresh.TableWindowMinutes = tableMinutes
	}
}
