package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Speech contains configuration for the speech-recognition backend.
type Speech struct {
	APIKey          string `toml:"api_key"`
	Endpoint        string `toml:"endpoint"`
	Language        string `toml:"language"`
	MaxRequestBytes int64  `toml:"max_request_bytes"`
	ChunkSeconds    int    `toml:"chunk_seconds"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// LLM contains configuration for the transcript-correction backend.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	// SimilarityThreshold gates corrected transcripts: results whose cosine
	// similarity to the raw transcript falls below this value are routed to
	// review instead of being accepted. Zero disables the gate.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// TTS contains configuration for the speech-synthesis backend.
type TTS struct {
	APIKey         string `toml:"api_key"`
	Endpoint       string `toml:"endpoint"`
	Language       string `toml:"language"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Audio contains waveform processing settings shared by the local stages.
type Audio struct {
	TargetDBFS float64 `toml:"target_dbfs"`
	SampleRate int     `toml:"sample_rate"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Errors         bool   `toml:"errors"`
}

// Workflow contains daemon timing and housekeeping intervals.
type Workflow struct {
	QueuePollInterval    int `toml:"queue_poll_interval"`
	ErrorRetryInterval   int `toml:"error_retry_interval"`
	HeartbeatInterval    int `toml:"heartbeat_interval"`
	HeartbeatTimeout     int `toml:"heartbeat_timeout"`
	WorkspaceMaxAgeHours int `toml:"workspace_max_age_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for revoice.
//
// Sections by subsystem:
//   - Paths: staging/output/log directories and API bind address
//   - Speech: recognition backend credentials and chunking ceilings
//   - LLM: transcript correction backend and fidelity gate
//   - TTS: synthesis backend, locale, and voice selection
//   - Audio: loudness target and extraction sample rate
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals and workspace retention
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Speech        Speech        `toml:"speech"`
	LLM           LLM           `toml:"llm"`
	TTS           TTS           `toml:"tts"`
	Audio         Audio         `toml:"audio"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/revoice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and credential environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
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

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
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

	projectPath, err := filepath.Abs("revoice.toml")
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

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(expanded); err == nil {
		return "", fmt.Errorf("config already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}

// EnsureDirectories creates the staging, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path must not be empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			trimmed = home
		} else {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("absolutize %s: %w", trimmed, err)
	}
	return abs, nil
}
