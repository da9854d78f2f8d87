package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"revoice/internal/config"
	"revoice/internal/deps"
	"revoice/internal/services/llm"
)

// CheckLLM verifies that the correction LLM API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, cfg config.LLM) Result {
	const name = "Correction LLM"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckSpeechCredentials validates the speech recognition configuration
// without issuing a billable request.
func CheckSpeechCredentials(cfg config.Speech) Result {
	const name = "Speech recognition"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	if detail, ok := checkEndpoint(cfg.Endpoint); !ok {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: "credentials configured"}
}

// CheckTTSCredentials validates the speech synthesis configuration without
// issuing a billable request.
func CheckTTSCredentials(cfg config.TTS) Result {
	const name = "Speech synthesis"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	if detail, ok := checkEndpoint(cfg.Endpoint); !ok {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: "credentials configured"}
}

func checkEndpoint(endpoint string) (string, bool) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "", true
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Sprintf("invalid endpoint %q", trimmed), false
	}
	return "", true
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
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

// CheckSystemDeps evaluates all system-level dependencies for the given
// config. Both the daemon and the CLI status command use this to avoid
// duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Required for audio extraction and muxing",
		},
		{
			Name:        "FFprobe",
			Command:     "ffprobe",
			Description: "Required for media inspection",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
