package config

const (
	defaultStagingDir = "~/.local/share/revoice/staging"
	defaultOutputDir  = "~/revoice/output"
	defaultLogDir     = "~/.local/share/revoice/logs"
	defaultAPIBind    = "127.0.0.1:7624"

	defaultSpeechEndpoint        = "https://speech.googleapis.com/v1/speech:recognize"
	defaultSpeechLanguage        = "en-US"
	defaultSpeechMaxRequestBytes = 10 * 1024 * 1024
	defaultSpeechChunkSeconds    = 60
	defaultSpeechTimeoutSeconds  = 120

	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMMaxTokens           = 1000
	defaultLLMTimeoutSeconds      = 60
	defaultLLMSimilarityThreshold = 0.35

	defaultTTSEndpoint       = "https://texttospeech.googleapis.com/v1/text:synthesize"
	defaultTTSLanguage       = "en-US"
	defaultTTSVoice          = "en-US-Journey-D"
	defaultTTSTimeoutSeconds = 120

	defaultTargetDBFS = -20.0
	defaultSampleRate = 16000

	defaultNotifyRequestTimeout = 10

	defaultQueuePollInterval    = 2
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 10
	defaultHeartbeatTimeout     = 300
	defaultWorkspaceMaxAgeHours = 48

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Speech: Speech{
			Endpoint:        defaultSpeechEndpoint,
			Language:        defaultSpeechLanguage,
			MaxRequestBytes: defaultSpeechMaxRequestBytes,
			ChunkSeconds:    defaultSpeechChunkSeconds,
			TimeoutSeconds:  defaultSpeechTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:             defaultLLMBaseURL,
			Model:               defaultLLMModel,
			MaxTokens:           defaultLLMMaxTokens,
			TimeoutSeconds:      defaultLLMTimeoutSeconds,
			SimilarityThreshold: defaultLLMSimilarityThreshold,
		},
		TTS: TTS{
			Endpoint:       defaultTTSEndpoint,
			Language:       defaultTTSLanguage,
			Voice:          defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Audio: Audio{
			TargetDBFS: defaultTargetDBFS,
			SampleRate: defaultSampleRate,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:    defaultQueuePollInterval,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			HeartbeatInterval:    defaultHeartbeatInterval,
			HeartbeatTimeout:     defaultHeartbeatTimeout,
			WorkspaceMaxAgeHours: defaultWorkspaceMaxAgeHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
