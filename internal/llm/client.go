package llm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/course-builder/internal/logging"
)

// Request is one logical completion request. It is never mutated by the client.
type Request struct {
	Prompt          string
	Tier            ModelTier
	Temperature     float32
	MaxOutputTokens int32
	StopSequences   []string
	// JSON asks the service for a JSON mime type where supported.
	JSON bool
}

// Transport performs exactly one request against the generation service.
type Transport interface {
	Send(ctx context.Context, req Request) (string, error)
	Model(tier ModelTier) string
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client issues completions with transport-level retries.
type Client struct {
	transport Transport
	config    *Config
	throttle  *Throttle
	logger    *logging.Logger
	sleep     SleepFunc
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSleep replaces the backoff sleeper.
func WithSleep(s SleepFunc) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithThrottle sets a client-side request pacer.
func WithThrottle(t *Throttle) Option {
	return func(c *Client) {
		c.throttle = t
	}
}

// NewClient wraps a transport with the retry policy from config.
func NewClient(transport Transport, config *Config, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	c := &Client{
		transport: transport,
		config:    config.withDefaults(),
		logger:    logging.Nop(),
		sleep:     sleepContext,
	}
	c.throttle = NewThrottle(c.config.RequestsPerMinute)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGeminiClient builds a retrying client on top of the Gemini transport.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	transport, err := NewGeminiTransport(ctx, config, apiKey)
	if err != nil {
		return nil, err
	}
	return NewClient(transport, config, opts...), nil
}

// Model returns the model name used for a tier.
func (c *Client) Model(tier ModelTier) string {
	return c.transport.Model(tier)
}

// Close releases transport resources when the transport holds any.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Complete sends req until it succeeds, fails fatally, or attempts run out.
// Every returned error is a *GenerationError.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	maxAttempts := c.config.MaxAttempts
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", canceled(attempt, err)
		}
		if err := c.throttle.Wait(ctx); err != nil {
			return "", canceled(attempt, err)
		}

		text, err := c.attempt(ctx, req)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("generation succeeded after retry", "attempts", attempt+1, "tier", string(req.Tier))
			}
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", canceled(attempt+1, ctxErr)
		}

		kind := Classify(err)
		if !kind.Retryable() {
			return "", &GenerationError{
				Kind:       KindFatal,
				Detail:     "non-retryable response",
				StatusCode: statusCode(err),
				Attempts:   attempt + 1,
				Err:        err,
			}
		}

		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		delay := c.Backoff(attempt, err)
		c.logger.Warn("generation attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"kind", string(kind),
			"sleep", delay.String(),
			"error", err.Error(),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", canceled(attempt+1, err)
		}
	}

	return "", &GenerationError{
		Kind:       KindExhausted,
		Detail:     fmt.Sprintf("retries exhausted after %d attempts (last: %s)", maxAttempts, Classify(lastErr)),
		StatusCode: statusCode(lastErr),
		Attempts:   maxAttempts,
		Err:        lastErr,
	}
}

// Backoff returns the wait before the attempt following the given zero-based attempt.
func (c *Client) Backoff(attempt int, err error) time.Duration {
	delay := c.config.BaseDelay << uint(attempt)
	if delay <= 0 || delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}
	if hint := retryAfter(err); hint > delay {
		delay = min(hint, c.config.MaxDelay)
	}
	return delay
}

func (c *Client) attempt(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	text, err := c.transport.Send(attemptCtx, req)
	if err != nil {
		return "", err
	}
	return text, nil
}

func canceled(attempts int, err error) *GenerationError {
	return &GenerationError{
		Kind:     KindCanceled,
		Detail:   "request canceled",
		Attempts: attempts,
		Err:      err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
