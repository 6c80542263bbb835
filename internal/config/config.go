package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains bind address and HTTP front-end configuration.
type Server struct {
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestsPerSec float64  `toml:"requests_per_sec"`
	RequestBurst   int      `toml:"request_burst"`
	TokenSecret    string   `toml:"token_secret"`
	TokenTTLHours  int      `toml:"token_ttl_hours"`
}

// Paths contains directory configuration.
type Paths struct {
	StorageDir string `toml:"storage_dir"`
	DataDir    string `toml:"data_dir"`
}

// Redis contains connection settings for the queue/status/limiter backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Limits contains rate limiter policy.
type Limits struct {
	JobsPerWindow     int `toml:"jobs_per_window"`
	JobWindowMinutes  int `toml:"job_window_minutes"`
	LoginMaxFailures  int `toml:"login_max_failures"`
	LoginBlockMinutes int `toml:"login_block_minutes"`
}

// Cleanup contains sweeper timing.
type Cleanup struct {
	IntervalMinutes int `toml:"interval_minutes"`
	RetentionHours  int `toml:"retention_hours"`
}

// Tools contains the external binaries the stage workers shell out to.
type Tools struct {
	YtDlp            string `toml:"yt_dlp"`
	FFmpeg           string `toml:"ffmpeg"`
	Python           string `toml:"python"`
	TranscribeScript string `toml:"transcribe_script"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the highlight detector.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipforge.
type Config struct {
	Server  Server  `toml:"server"`
	Paths   Paths   `toml:"paths"`
	Redis   Redis   `toml:"redis"`
	Limits  Limits  `toml:"limits"`
	Cleanup Cleanup `toml:"cleanup"`
	Tools   Tools   `toml:"tools"`
	LLM     LLM     `toml:"llm"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded, env secrets applied, and defaults
// filled in. The second return is the resolved path, the third whether the
// file existed.
func Load(path string) (*Config, string, bool, error) {
	// Secrets may live in a .env next to the working directory; absence is fine.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("CLIPFORGE_LLM_API_KEY")); v != "" {
		c.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPFORGE_TOKEN_SECRET")); v != "" {
		c.Server.TokenSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPFORGE_REDIS_ADDR")); v != "" {
		c.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPFORGE_REDIS_PASSWORD")); v != "" {
		c.Redis.Password = v
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the storage and data directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StorageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite job store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.DataDir, "clipforge.log")
}

// LockPath returns the serve-mode single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "clipforge.lock")
}

// JobWindow returns the job-creation limiter window.
func (c *Config) JobWindow() time.Duration {
	return time.Duration(c.Limits.JobWindowMinutes) * time.Minute
}

// LoginBlock returns the login limiter cool-down.
func (c *Config) LoginBlock() time.Duration {
	return time.Duration(c.Limits.LoginBlockMinutes) * time.Minute
}

// SweepInterval returns how often the cleanup sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalMinutes) * time.Minute
}

// Retention returns how long completed jobs keep their artifacts.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Cleanup.RetentionHours) * time.Hour
}

// TokenTTL returns the lifetime of issued auth tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Server.TokenTTLHours) * time.Hour
}

// ToolTimeout returns the per-invocation timeout for external tools. Zero
// means no deadline, which is the default: a stage runs its tool to
// completion unless an operator configures a limit.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
