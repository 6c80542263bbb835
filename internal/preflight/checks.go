// Package preflight verifies a host can actually run the pipeline: the
// external tools exist, the directories are writable, and the backing
// services respond.
package preflight

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/deps"
)

// Result reports a single non-binary check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckSystemDeps evaluates the external tools the stage workers need.
// Both the daemon startup path and the doctor command use this so the
// requirements list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	results := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDlp,
			Description: "Required for video downloads",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for audio extraction and clip cutting",
		},
		{
			Name:        "Python",
			Command:     cfg.Tools.Python,
			Description: "Required to run the transcription script",
		},
	})
	results = append(results, deps.CheckFile(deps.Requirement{
		Name:        "Transcribe script",
		Command:     cfg.Tools.TranscribeScript,
		Description: "Whisper transcription entry point",
	}))
	return results
}

// CheckDirectoryAccess verifies the directory exists and is read/write.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRedis pings the queue backend with a short timeout.
func CheckRedis(ctx context.Context, cfg *config.Config) Result {
	const name = "Redis"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	if err := client.Ping(checkCtx).Err(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s unreachable (%v)", cfg.Redis.Addr, err)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Redis.Addr + " reachable"}
}

// CheckLLM verifies the highlight detector is configured. It does not call
// the API; a misconfigured key still surfaces as a degraded render, never a
// failed job.
func CheckLLM(cfg *config.Config) Result {
	const name = "Highlight detection"

	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing, jobs will complete without clips"}
	}
	if _, err := url.ParseRequestURI(cfg.LLM.BaseURL); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid base url %q", cfg.LLM.BaseURL)}
	}
	return Result{Name: name, Passed: true, Detail: "configured (" + cfg.LLM.Model + ")"}
}
