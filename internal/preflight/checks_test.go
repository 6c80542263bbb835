package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/testsupport"
)

func TestCheckSystemDepsReportsEveryTool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.YtDlp = "definitely-not-installed-ytdlp"
	cfg.Tools.TranscribeScript = filepath.Join(t.TempDir(), "transcribe.py")
	if err := os.WriteFile(cfg.Tools.TranscribeScript, []byte("print('ok')\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	results := CheckSystemDeps(cfg)
	if len(results) != 4 {
		t.Fatalf("got %d results, want yt-dlp, ffmpeg, python, script", len(results))
	}

	byName := map[string]bool{}
	for _, status := range results {
		byName[status.Name] = status.Available
	}
	if byName["yt-dlp"] {
		t.Fatal("missing yt-dlp binary reported as available")
	}
	if !byName["Transcribe script"] {
		t.Fatal("existing script reported as missing")
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	if result := CheckDirectoryAccess("Storage", dir); !result.Passed {
		t.Fatalf("writable dir = %+v", result)
	}
	if result := CheckDirectoryAccess("Storage", filepath.Join(dir, "missing")); result.Passed {
		t.Fatalf("missing dir = %+v", result)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if result := CheckDirectoryAccess("Storage", file); result.Passed {
		t.Fatalf("plain file = %+v", result)
	}
}

func TestCheckRedis(t *testing.T) {
	mr, _ := testsupport.NewRedis(t)

	cfg := testsupport.NewConfig(t, testsupport.WithRedisAddr(mr.Addr()))
	if result := CheckRedis(context.Background(), cfg); !result.Passed {
		t.Fatalf("live redis = %+v", result)
	}

	mr.Close()
	if result := CheckRedis(context.Background(), cfg); result.Passed {
		t.Fatal("closed redis reported reachable")
	}
}

func TestCheckLLM(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cfg.LLM.APIKey = ""
	if result := CheckLLM(cfg); result.Passed {
		t.Fatal("missing key should not pass")
	}

	cfg.LLM.APIKey = "sk-test"
	if result := CheckLLM(cfg); !result.Passed {
		t.Fatalf("configured detector = %+v", result)
	}

	cfg.LLM.BaseURL = "not a url"
	if result := CheckLLM(cfg); result.Passed {
		t.Fatal("bad base url should not pass")
	}
}
