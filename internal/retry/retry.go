package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/apiload/internal/common"
)

// ErrExhausted marks a failure that was still retryable when the attempt budget ran out.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures the backoff state machine of a transport.
type Policy struct {
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BackoffFactor   time.Duration `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	RetryableStatus []int         `mapstructure:"status_codes" yaml:"status_codes"`
}

// DefaultRetryableStatus are too-many-requests plus the usual transient server errors.
var DefaultRetryableStatus = []int{429, 500, 502, 503, 504}

// DefaultPolicy returns 3 attempts with a one second backoff factor.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		BackoffFactor:   time.Second,
		RetryableStatus: append([]int(nil), DefaultRetryableStatus...),
	}
}

// WithDefaults fills zero fields from DefaultPolicy. A negative factor means no wait.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = d.BackoffFactor
	}
	if p.BackoffFactor < 0 {
		p.BackoffFactor = 0
	}
	if len(p.RetryableStatus) == 0 {
		p.RetryableStatus = d.RetryableStatus
	}
	return p
}

// Delay is the wait after attempt n (zero based): factor * 2^n.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BackoffFactor * time.Duration(int64(1)<<uint(attempt))
}

// IsRetryableStatus reports whether code is in the policy's retryable set.
func (p Policy) IsRetryableStatus(code int) bool {
	for _, c := range p.RetryableStatus {
		if c == code {
			return true
		}
	}
	return false
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the wall-clock Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Operation performs attempt n and reports whether its outcome may be retried.
// A retryable outcome with a nil error is a response that should be retried
// (for example a 503); the caller keeps that response itself.
type Operation func(attempt int) (retryable bool, err error)

// Do runs op under policy p. It returns the number of attempts made and the
// final error. When the last attempt failed with a retryable error the
// returned error wraps both ErrExhausted and that error.
func Do(ctx context.Context, p Policy, sleep Sleeper, op Operation) (int, error) {
	p = p.WithDefaults()
	if sleep == nil {
		sleep = ContextSleep
	}
	logger := common.GetLogger().WithComponent("retry")

	for attempt := 0; ; attempt++ {
		retryable, err := op(attempt)
		if !retryable {
			return attempt + 1, err
		}
		if attempt >= p.MaxAttempts-1 {
			if err != nil {
				logger.Warn("giving up after retryable failure", "attempts", attempt+1, "error", err)
				return attempt + 1, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt+1, err)
			}
			logger.Warn("giving up with retryable response", "attempts", attempt+1)
			return attempt + 1, nil
		}

		delay := p.Delay(attempt)
		logger.Debug("attempt failed, retrying",
			"attempt", attempt+1,
			"max_attempts", p.MaxAttempts,
			"retry_delay", delay,
			"error", err)
		if serr := sleep(ctx, delay); serr != nil {
			return attempt + 1, fmt.Errorf("operation cancelled during retry: %w", serr)
		}
	}
}
