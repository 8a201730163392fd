package research

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

// RetryConfig paces repeated provider calls. Delays grow by Multiplier from
// InitialDelay and never exceed MaxDelay.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig allows one retry per provider call before the variant
// is skipped.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		InitialDelay: 400 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2.0,
	}
}

// backoff returns the pause before retry number n (0-based), spread by
// ±25% so that concurrent sessions do not retry in lockstep.
func (c RetryConfig) backoff(n int) time.Duration {
	delay := float64(c.InitialDelay)
	for i := 0; i < n; i++ {
		delay *= c.Multiplier
		if c.MaxDelay > 0 && delay >= float64(c.MaxDelay) {
			delay = float64(c.MaxDelay)
			break
		}
	}
	spread := time.Duration(delay * (0.75 + rand.Float64()*0.5))
	if c.MaxDelay > 0 && spread > c.MaxDelay {
		return c.MaxDelay
	}
	return spread
}

// RetryWithBackoff calls fn until it succeeds, fails permanently or runs
// out of attempts, and returns the last error. Cancelling ctx while waiting
// returns ctx.Err().
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var err error
	for n := 0; n < attempts; n++ {
		if n > 0 && !sleepContext(ctx, cfg.backoff(n-1)) {
			return ctx.Err()
		}
		if err = fn(); err == nil || !isTransientError(err) {
			return err
		}
	}
	return err
}

// transientMarkers match error texts of the video API client and of the
// transport underneath it.
var transientMarkers = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"status 502",
	"status 503",
	"status 504",
	"eof",
}

// isTransientError reports failures worth another attempt. Quota, client
// errors, an open breaker and caller cancellation never are.
func isTransientError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, ErrProviderBlocked):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
