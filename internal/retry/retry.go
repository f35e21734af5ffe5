package retry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
)

// Policy bounds the retry loop. Delay before retry n is BaseDelay * n,
// so attempts spread out linearly rather than doubling.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do invokes op up to MaxAttempts times. Only errors classified as
// transient are retried; anything else propagates after the first attempt.
// The final error is returned unwrapped so callers can inspect it.
func Do[T any](ctx context.Context, logger *slog.Logger, policy Policy, name string, op func() (T, error)) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op()
		if err == nil {
			return res, nil
		}
		if !Transient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, delay time.Duration) {
		logger.Warn("retry.attempt",
			"op", name,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
	}

	lb := &linearBackOff{base: policy.BaseDelay, maxAttempts: policy.MaxAttempts}
	return backoff.RetryNotifyWithData(operation, backoff.WithContext(lb, ctx), notify)
}

// linearBackOff yields base*1, base*2, ... and stops once the attempt
// budget is spent.
type linearBackOff struct {
	base        time.Duration
	maxAttempts int
	attempt     int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	if l.attempt >= l.maxAttempts {
		return backoff.Stop
	}
	return l.base * time.Duration(l.attempt)
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// transientSignatures are the error-text fragments treated as retryable.
var transientSignatures = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"timed out",
	"no such host",
	"unexpected eof",
	"connection error",
}

// Transient reports whether err looks like a transient network failure.
// Cancellation is never transient: a shut-down caller must not spin.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
