package testsupport

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Server.TokenSecret = "test-secret"
	cfg.Paths.StorageDir = filepath.Join(base, "storage")
	cfg.Paths.DataDir = filepath.Join(base, "data")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRedisAddr points the test config at a specific redis instance.
func WithRedisAddr(addr string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Redis.Addr = addr
	}
}
