// Package speech wraps a Google-style speech recognition REST API.
//
// Audio is submitted inline as base64 LINEAR16 PCM; the response's first
// alternative per result is joined into a single transcript. Transient
// failures (HTTP 429/5xx, network timeouts) retry with exponential backoff.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 8 * time.Second
)

// Config captures the runtime settings for the recognition backend.
type Config struct {
	APIKey         string
	Endpoint       string
	Language       string
	TimeoutSeconds int
}

// Client performs synchronous speech recognition requests.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a speech client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Endpoint:       strings.TrimSpace(cfg.Endpoint),
			Language:       strings.TrimSpace(cfg.Language),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Endpoint == "" {
		client.cfg.Endpoint = "https://speech.googleapis.com/v1/speech:recognize"
	}
	if client.cfg.Language == "" {
		client.cfg.Language = "en-US"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// StatusError reports a non-2xx response from the recognition endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding        string `json:"encoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
	LanguageCode    string `json:"languageCode"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Recognize transcribes a LINEAR16 PCM payload at the given sample rate.
// Audio without recognizable speech yields an empty transcript and no error.
func (c *Client) Recognize(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", errors.New("speech recognize: empty audio payload")
	}
	if sampleRate <= 0 {
		return "", fmt.Errorf("speech recognize: invalid sample rate %d", sampleRate)
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("speech recognize: api key required")
	}

	payload := recognizeRequest{
		Config: recognizeConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: sampleRate,
			LanguageCode:    c.cfg.Language,
		},
		Audio: recognizeAudio{
			Content: base64.StdEncoding.EncodeToString(pcm),
		},
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		transcript, err := c.recognizeOnce(ctx, payload)
		if err == nil {
			return transcript, nil
		}
		if !c.shouldRetry(ctx, err, attempt, attempts) {
			return "", err
		}
		if sleepErr := c.sleep(ctx, c.backoffDelay(attempt)); sleepErr != nil {
			return "", sleepErr
		}
		lastErr = err
	}
	return "", fmt.Errorf("speech recognize: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) recognizeOnce(ctx context.Context, payload recognizeRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("speech request: encode body: %w", err)
	}
	endpoint, err := c.endpointWithKey()
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("speech request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded recognizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("speech request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("speech request: api error %d: %s", decoded.Error.Code, strings.TrimSpace(decoded.Error.Message))
	}

	parts := make([]string, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if transcript := strings.TrimSpace(result.Alternatives[0].Transcript); transcript != "" {
			parts = append(parts, transcript)
		}
	}
	return strings.Join(parts, " "), nil
}

// HealthCheck verifies the endpoint and credentials are plausibly usable
// without spending a recognition request.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("speech health: api key required")
	}
	if _, err := url.Parse(c.cfg.Endpoint); err != nil {
		return fmt.Errorf("speech health: invalid endpoint: %w", err)
	}
	return nil
}

func (c *Client) endpointWithKey() (string, error) {
	parsed, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("speech request: parse endpoint: %w", err)
	}
	query := parsed.Query()
	query.Set("key", c.cfg.APIKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) shouldRetry(ctx context.Context, err error, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts || err == nil || ctx == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	if delay < 0 {
		delay = defaultRetryBaseDelay
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
