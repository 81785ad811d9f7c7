package testsupport

import (
	"path/filepath"
	"testing"

	"leadflow/internal/config"
)

// ConfigOption adjusts the configuration built by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns the default configuration with data and log directories
// under a per-test temp dir, then applies opts in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithNotifyKinds replaces the task kinds that raise completion notifications.
func WithNotifyKinds(kinds ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NotifyKinds = append([]string(nil), kinds...)
	}
}

// WithSignals replaces the scoring rule table.
func WithSignals(signals map[string]int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scoring.Signals = signals
	}
}
