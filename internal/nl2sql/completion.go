package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"

	"github.com/promptchart/promptchart/internal/failure"
	"github.com/promptchart/promptchart/internal/observability"
)

// CompletionOptions are the sampling parameters sent with one prompt.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer turns a prompt into raw model text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

type CompletionConfig struct {
	BaseURL        string
	Path           string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// HTTPCompleter calls a chat endpoint that answers {"response": "..."}.
type HTTPCompleter struct {
	endpoint       string
	apiKey         string
	model          string
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	client         *http.Client
	logger         *slog.Logger
}

// maxResponseBytes caps how much of a chat response body is read.
const maxResponseBytes = 4 << 20

var errMalformedResponse = errors.New("invalid response format from completion service")

func NewHTTPCompleter(cfg CompletionConfig) (*HTTPCompleter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("completion base URL is required")
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/api/chat"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPCompleter{
		endpoint:       baseURL + path,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		model:          strings.TrimSpace(cfg.Model),
		timeout:        timeout,
		maxAttempts:    attempts,
		initialBackoff: initial,
		client:         client,
		logger:         logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// Complete sends prompt with up to MaxAttempts tries. Waits between failed
// attempts double from InitialBackoff. Exhaustion yields an
// UPSTREAM_UNAVAILABLE failure carrying the last attempt's error.
func (c *HTTPCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = 8 * c.initialBackoff

	start := time.Now()
	attempt := 0
	var lastErr error
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		text, err := c.attempt(ctx, body)
		if err == nil {
			observability.IncrementCompletionAttempt("ok")
			return text, nil
		}
		lastErr = err
		if errors.Is(err, errMalformedResponse) {
			observability.IncrementCompletionAttempt("malformed")
		} else {
			observability.IncrementCompletionAttempt("error")
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(err)
		}
		return "", err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "completion attempt failed",
				observability.TraceAttr(ctx),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", c.maxAttempts),
				slog.Duration("retry_in", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
	observability.ObserveCompletionLatency(time.Since(start))
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", failure.Wrap(lastErr, failure.KindUpstreamUnavailable,
			fmt.Sprintf("completion service failed after %d attempts: %v", attempt, lastErr))
	}
	return text, nil
}

func (c *HTTPCompleter) attempt(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat completion failed status=%d body=%s", resp.StatusCode, truncate(string(raw), 512))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedResponse, err)
	}
	if parsed.Response == nil || strings.TrimSpace(*parsed.Response) == "" {
		return "", errMalformedResponse
	}
	return *parsed.Response, nil
}

// truncate cuts value to at most limit bytes without splitting a rune.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "..."
}
