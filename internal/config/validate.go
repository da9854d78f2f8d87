package config

import (
	"errors"
	"fmt"
	"strings"

	"revoice/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSpeech() error {
	if c.Speech.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/revoice/config.toml"
		}
		return fmt.Errorf("speech.api_key is required. Set REVOICE_SPEECH_API_KEY env var or edit %s (create with 'revoice config init')", defaultPath)
	}
	if c.Speech.MaxRequestBytes < 1024 {
		return errors.New("speech.max_request_bytes must be at least 1024")
	}
	if c.Speech.ChunkSeconds < 1 {
		return errors.New("speech.chunk_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required. Set REVOICE_LLM_API_KEY env var or edit the config file")
	}
	if c.LLM.SimilarityThreshold < 0 || c.LLM.SimilarityThreshold > 1 {
		return errors.New("llm.similarity_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.APIKey == "" {
		return errors.New("tts.api_key is required. Set REVOICE_TTS_API_KEY env var or edit the config file")
	}
	if c.TTS.Voice == "" {
		return errors.New("tts.voice must be set")
	}
	if !voiceMatchesLanguage(c.TTS.Voice, c.TTS.Language) {
		return fmt.Errorf("tts.voice %q does not match tts.language %q", c.TTS.Voice, c.TTS.Language)
	}
	return nil
}

// voiceMatchesLanguage checks that a locale-prefixed voice name (e.g.
// "en-US-Journey-D") agrees with the configured synthesis language. Voice
// names without a recognizable language prefix are accepted as-is.
func voiceMatchesLanguage(voice, lang string) bool {
	prefix, _, found := strings.Cut(voice, "-")
	if !found || len(prefix) < 2 || len(prefix) > 3 {
		return true
	}
	for _, r := range prefix {
		if r < 'a' || r > 'z' {
			return true
		}
	}
	return language.Base(prefix) == language.Base(lang)
}

func (c *Config) validateAudio() error {
	if c.Audio.TargetDBFS > 0 {
		return errors.New("audio.target_dbfs must be zero or negative (dBFS)")
	}
	if c.Audio.SampleRate < 8000 {
		return errors.New("audio.sample_rate must be at least 8000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
