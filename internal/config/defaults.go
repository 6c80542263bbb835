package config

const (
	defaultBind              = "127.0.0.1:8000"
	defaultStorageDir        = "~/.local/share/clipforge/storage"
	defaultDataDir           = "~/.local/share/clipforge"
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultRequestsPerSec    = 20.0
	defaultRequestBurst      = 40
	defaultTokenTTLHours     = 24
	defaultJobsPerWindow     = 10
	defaultJobWindowMinutes  = 60
	defaultLoginMaxFailures  = 7
	defaultLoginBlockMinutes = 30
	defaultSweepIntervalMin  = 60
	defaultRetentionHours    = 24
	defaultYtDlpBinary       = "yt-dlp"
	defaultFFmpegBinary      = "ffmpeg"
	defaultPythonBinary      = "python3"
	defaultTranscribeScript  = "scripts/transcribe.py"
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-2.5-flash"
	defaultLLMTimeoutSec     = 120
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:           defaultBind,
			RequestsPerSec: defaultRequestsPerSec,
			RequestBurst:   defaultRequestBurst,
			TokenTTLHours:  defaultTokenTTLHours,
		},
		Paths: Paths{
			StorageDir: defaultStorageDir,
			DataDir:    defaultDataDir,
		},
		Redis: Redis{
			Addr: defaultRedisAddr,
		},
		Limits: Limits{
			JobsPerWindow:     defaultJobsPerWindow,
			JobWindowMinutes:  defaultJobWindowMinutes,
			LoginMaxFailures:  defaultLoginMaxFailures,
			LoginBlockMinutes: defaultLoginBlockMinutes,
		},
		Cleanup: Cleanup{
			IntervalMinutes: defaultSweepIntervalMin,
			RetentionHours:  defaultRetentionHours,
		},
		Tools: Tools{
			YtDlp:            defaultYtDlpBinary,
			FFmpeg:           defaultFFmpegBinary,
			Python:           defaultPythonBinary,
			TranscribeScript: defaultTranscribeScript,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSec,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
