package config

const (
	defaultTranscriptsDir      = "~/.local/share/mnemo/transcripts"
	defaultDataDir             = "~/.local/share/mnemo"
	defaultLogDir              = "~/.local/share/mnemo/logs"
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/mnemo"
	defaultLLMTitle            = "Mnemo Memory Extraction"
	defaultLLMTimeoutSeconds   = 60
	defaultFallbackWindow      = 50
	defaultRetryAttempts       = 3
	defaultGracePeriodSeconds  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TranscriptsDir: defaultTranscriptsDir,
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Extraction: Extraction{
			FallbackWindow: defaultFallbackWindow,
			RetryAttempts:  defaultRetryAttempts,
		},
		Watchdog: Watchdog{
			GracePeriodSeconds: defaultGracePeriodSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
