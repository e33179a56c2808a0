// Package resilience retries fallible calls with backoff tuned to the
// rate-limit signatures of Google's model APIs.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	MaxDelay          = 60 * time.Second
)

type config struct {
	maxRetries int
	baseDelay  time.Duration
	retryIf    func(error) bool
	timer      backoff.Timer
	name       string
}

type Option func(*config)

// WithMaxRetries sets the total number of attempts. Values below 1 mean a
// single attempt.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *config) { c.baseDelay = d }
}

// WithRetryIf stops retrying as soon as fn returns false for an error. The
// error is returned unchanged.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *config) { c.retryIf = fn }
}

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(t backoff.Timer) Option {
	return func(c *config) { c.timer = t }
}

// WithName labels retry log lines.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// Delay is the wait before the attempt following a failed attempt number
// attempt (1-based). Rate-limit errors honour a server RetryInfo delay or
// back off exponentially from base; both are capped at MaxDelay. Other
// errors back off linearly.
func Delay(err error, attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if IsRateLimitError(err) {
		if d, ok := RetryDelay(err); ok {
			return min(d, MaxDelay)
		}
		if attempt > 30 {
			return MaxDelay
		}
		return min(base*time.Duration(1<<(attempt-1)), MaxDelay)
	}
	return base * time.Duration(attempt)
}

// policy is a backoff.BackOff whose next interval depends on the error the
// last attempt returned.
type policy struct {
	base    time.Duration
	lastErr error
	attempt int
}

func (p *policy) observe(err error, attempt int) {
	p.lastErr = err
	p.attempt = attempt
}

func (p *policy) NextBackOff() time.Duration {
	return Delay(p.lastErr, p.attempt, p.base)
}

func (p *policy) Reset() {
	p.lastErr = nil
	p.attempt = 0
}

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds or the attempts run out, then returns the
// last error exactly as op returned it. Waiting honours ctx: cancellation
// ends the loop with ctx.Err().
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := config{
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}

	p := &policy{base: cfg.baseDelay}
	b := backoff.WithContext(backoff.WithMaxRetries(p, uint64(cfg.maxRetries-1)), ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		p.observe(err, attempt)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return v, err
		}
		if cfg.retryIf != nil && !cfg.retryIf(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "retrying model call",
			"operation", cfg.name,
			"attempt", attempt,
			"max_attempts", cfg.maxRetries,
			"delay", wait,
			"rate_limited", IsRateLimitError(err),
			"error", err,
		)
	}

	return backoff.RetryNotifyWithTimerAndData(operation, b, notify, cfg.timer)
}
