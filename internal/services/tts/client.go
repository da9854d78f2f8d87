// Package tts wraps a Google-style text-to-speech REST API.
//
// Synthesis requests LINEAR16 output so the result is a WAV stream the muxing
// stage can hand straight to ffmpeg. Transient failures retry with backoff.
package tts

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

// Config captures the runtime settings for the synthesis backend.
type Config struct {
	APIKey         string
	Endpoint       string
	Language       string
	Voice          string
	SampleRate     int
	TimeoutSeconds int
}

// Client performs text-to-speech synthesis requests.
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

// NewClient constructs a synthesis client using the supplied configuration.
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
			Voice:          strings.TrimSpace(cfg.Voice),
			SampleRate:     cfg.SampleRate,
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
		client.cfg.Endpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"
	}
	if client.cfg.Language == "" {
		client.cfg.Language = "en-US"
	}
	if client.cfg.Voice == "" {
		client.cfg.Voice = "en-US-Journey-D"
	}
	if client.cfg.SampleRate <= 0 {
		client.cfg.SampleRate = 24000
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// StatusError reports a non-2xx response from the synthesis endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tts request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type synthesizeRequest struct {
	Input       synthesisInput  `json:"input"`
	Voice       voiceSelection  `json:"voice"`
	AudioConfig audioConfigSpec `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type audioConfigSpec struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
	Error        *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize renders the supplied text as LINEAR16 audio, returning the raw
// WAV bytes from the backend.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("tts synthesize: empty text")
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("tts synthesize: api key required")
	}

	payload := synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: voiceSelection{
			LanguageCode: c.cfg.Language,
			Name:         c.cfg.Voice,
		},
		AudioConfig: audioConfigSpec{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: c.cfg.SampleRate,
		},
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		audio, err := c.synthesizeOnce(ctx, payload)
		if err == nil {
			return audio, nil
		}
		if !c.shouldRetry(ctx, err, attempt, attempts) {
			return nil, err
		}
		if sleepErr := c.sleep(ctx, c.backoffDelay(attempt)); sleepErr != nil {
			return nil, sleepErr
		}
		lastErr = err
	}
	return nil, fmt.Errorf("tts synthesize: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) synthesizeOnce(ctx context.Context, payload synthesizeRequest) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tts request: encode body: %w", err)
	}
	endpoint, err := c.endpointWithKey()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("tts request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded synthesizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("tts request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("tts request: api error %d: %s", decoded.Error.Code, strings.TrimSpace(decoded.Error.Message))
	}
	if strings.TrimSpace(decoded.AudioContent) == "" {
		return nil, errors.New("tts request: response carried no audio content")
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("tts request: decode audio content: %w", err)
	}
	return audio, nil
}

// HealthCheck verifies the endpoint and credentials are plausibly usable
// without spending a synthesis request.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("tts health: api key required")
	}
	if _, err := url.Parse(c.cfg.Endpoint); err != nil {
		return fmt.Errorf("tts health: invalid endpoint: %w", err)
	}
	return nil
}

func (c *Client) endpointWithKey() (string, error) {
	parsed, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("tts request: parse endpoint: %w", err)
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
