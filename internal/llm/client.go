// Package llm provides the language-model client used by the query
// pipeline.
//
// The client speaks the OpenAI chat completions API via langchaingo, which
// covers OpenAI itself and local OpenAI-compatible inference servers. Every
// invocation carries a per-attempt timeout and a bounded retry budget with
// exponential backoff for transient failures; a process-wide rate limiter
// keeps the service inside API quotas.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/onodera-10002/aozora/internal/logging"
)

// ErrGeneration indicates language-model invocation failure after the retry
// budget is exhausted or on a non-transient API error.
var ErrGeneration = errors.New("language model invocation failed")

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default rate limiter settings: 50 requests per minute with small bursts.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Client invokes a language model with a single prompt.
type Client interface {
	// Invoke sends the prompt and returns the generated text.
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Config holds language-model client configuration.
type Config struct {
	// BaseURL is an OpenAI-compatible endpoint.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the endpoint. Optional for local
	// servers.
	APIKey string

	// Timeout bounds each individual attempt. Default: 30s.
	Timeout time.Duration

	// MaxRetries bounds retry attempts for transient failures.
	// Default: 3.
	MaxRetries int

	// BaseBackoff is the initial retry backoff; doubles per attempt.
	// Default: 1s.
	BaseBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// OpenAIClient implements Client against an OpenAI-compatible endpoint.
type OpenAIClient struct {
	config  Config
	limiter *rate.Limiter
	logger  *logging.Logger

	// generate performs one model call; swapped out in tests.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewOpenAIClient creates a language-model client.
func NewOpenAIClient(cfg Config, logger *logging.Logger) (*OpenAIClient, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token; local servers ignore it.
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	return &OpenAIClient{
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		logger:  logger.Named("llm"),
		generate: func(ctx context.Context, prompt string) (string, error) {
			return llms.GenerateFromSinglePrompt(ctx, model, prompt)
		},
	}, nil
}

// Invoke sends the prompt, retrying transient failures with exponential
// backoff up to the configured budget.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", ErrGeneration, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.BaseBackoff * time.Duration(1<<(attempt-1))
			c.logger.Warn(ctx, "model call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrGeneration, ctx.Err())
			}
		}

		response, err := c.invokeOnce(ctx, prompt)
		if err == nil {
			return response, nil
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: retries exhausted: %v", ErrGeneration, lastErr)
}

// invokeOnce performs a single attempt under the per-attempt timeout.
func (c *OpenAIClient) invokeOnce(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.generate(attemptCtx, prompt)
}

// isRetryable reports whether err is a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	transient := []string{
		"timeout",
		"deadline exceeded",
		"rate limit",
		"too many requests",
		"429",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"status code: 500",
		"status code: 502",
		"status code: 503",
		"status code: 504",
	}
	for _, marker := range transient {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
