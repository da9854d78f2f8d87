package config

import (
	"fmt"
	"os"
	"strings"

	"revoice/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSpeech(); err != nil {
		return err
	}
	c.normalizeLLM()
	if err := c.normalizeTTS(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeSpeech() error {
	if c.Speech.APIKey == "" {
		if value, ok := os.LookupEnv("REVOICE_SPEECH_API_KEY"); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
	c.Speech.Endpoint = strings.TrimSpace(c.Speech.Endpoint)
	if c.Speech.Endpoint == "" {
		c.Speech.Endpoint = defaultSpeechEndpoint
	}
	tag, err := language.Normalize(c.Speech.Language)
	if err != nil {
		return fmt.Errorf("speech.language: %w", err)
	}
	c.Speech.Language = tag
	if c.Speech.MaxRequestBytes <= 0 {
		c.Speech.MaxRequestBytes = defaultSpeechMaxRequestBytes
	}
	if c.Speech.ChunkSeconds <= 0 {
		c.Speech.ChunkSeconds = defaultSpeechChunkSeconds
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("REVOICE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	if c.LLM.BaseURL == "" {
		if value, ok := os.LookupEnv("REVOICE_LLM_BASE_URL"); ok {
			c.LLM.BaseURL = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTTS() error {
	if c.TTS.APIKey == "" {
		if value, ok := os.LookupEnv("REVOICE_TTS_API_KEY"); ok {
			c.TTS.APIKey = strings.TrimSpace(value)
		}
	}
	c.TTS.Endpoint = strings.TrimSpace(c.TTS.Endpoint)
	if c.TTS.Endpoint == "" {
		c.TTS.Endpoint = defaultTTSEndpoint
	}
	c.TTS.Language = strings.TrimSpace(c.TTS.Language)
	if c.TTS.Language == "" {
		c.TTS.Language = c.Speech.Language
	}
	tag, err := language.Normalize(c.TTS.Language)
	if err != nil {
		return fmt.Errorf("tts.language: %w", err)
	}
	c.TTS.Language = tag
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeAudio() {
	if c.Audio.TargetDBFS == 0 {
		c.Audio.TargetDBFS = defaultTargetDBFS
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.WorkspaceMaxAgeHours <= 0 {
		c.Workflow.WorkspaceMaxAgeHours = defaultWorkspaceMaxAgeHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
