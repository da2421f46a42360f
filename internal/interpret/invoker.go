package interpret

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Request is one rendered inference request: the prompt text plus an
// optional image and its media type.
type Request struct {
	Prompt    string
	Image     []byte
	ImageMIME string
}

// Backend performs one inference call against a named model. It is the only
// collaborator in the pipeline with externally imposed latency.
type Backend interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}

// ErrAllModelsFailed is wrapped around the most recent backend error when
// the whole fallback chain is exhausted.
var ErrAllModelsFailed = errors.New("all inference models failed")

const (
	defaultMaxAttempts = 2
	defaultBaseDelay   = 2 * time.Second
)

// Invoker walks an ordered model list, retrying rate-limited calls with
// exponential backoff and falling through to the next model otherwise.
// Falling back to a weaker model is preferable to failing the request.
type Invoker struct {
	backend     Backend
	models      []string
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	log         zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRateLimiter guards total upstream call volume.
func WithRateLimiter(l *rate.Limiter) InvokerOption {
	return func(inv *Invoker) { inv.limiter = l }
}

// WithRetryPolicy overrides the per-model attempt bound and backoff base.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) InvokerOption {
	return func(inv *Invoker) {
		inv.maxAttempts = maxAttempts
		inv.baseDelay = baseDelay
	}
}

// WithSleeper overrides the backoff sleep, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) InvokerOption {
	return func(inv *Invoker) { inv.sleep = sleep }
}

// NewInvoker creates an Invoker over the given backend and ordered model
// list (primary first).
func NewInvoker(backend Backend, models []string, log zerolog.Logger, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		backend:     backend,
		models:      models,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		log:         log,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke returns the raw response text from the first model that answers.
// Rate-limited calls are retried on the same model up to the attempt bound
// with doubling delay; any other failure abandons the model immediately.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for _, model := range inv.models {
		delay := inv.baseDelay

		for attempt := 1; attempt <= inv.maxAttempts; attempt++ {
			if inv.limiter != nil {
				if err := inv.limiter.Wait(ctx); err != nil {
					return "", fmt.Errorf("rate limiter wait: %w", err)
				}
			}

			inv.log.Info().
				Str("model", model).
				Int("attempt", attempt).
				Int("max_attempts", inv.maxAttempts).
				Msg("invoking inference model")

			text, err := inv.backend.Generate(ctx, model, req)
			if err == nil {
				inv.log.Info().Str("model", model).Msg("inference succeeded")
				return text, nil
			}

			lastErr = err

			if !IsRateLimited(err) {
				inv.log.Error().Err(err).Str("model", model).Msg("inference failed, trying next model")
				break
			}

			if attempt == inv.maxAttempts {
				inv.log.Warn().Str("model", model).Msg("rate limit retries exhausted, trying next model")
				break
			}

			inv.log.Warn().
				Str("model", model).
				Dur("retry_after", delay).
				Msg("rate limited, backing off")

			if err := inv.sleep(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
		}
	}

	if lastErr == nil {
		return "", ErrAllModelsFailed
	}
	return "", fmt.Errorf("%w: %w", ErrAllModelsFailed, lastErr)
}

// IsRateLimited classifies an error as a rate-limit/quota signature that
// warrants retrying the same model.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate") ||
		strings.Contains(msg, "resource_exhausted")
}
