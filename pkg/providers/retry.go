package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/lylexist/deepseek-ocr-ui/internal/utils"
)

const (
	DefaultAttempts   uint = 3
	DefaultRetryDelay      = time.Second
)

// StatusError is returned when a backend answers with a non-200 status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}

// IsRetryable reports whether err is a transport failure, a 5xx, or a 429.
// Timeouts and cancellations are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= http.StatusInternalServerError
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// configured attempts are used up. The last error is returned unwrapped.
func Do(ctx context.Context, config Config, fn func() error) error {
	attempts := config.Attempts
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	delay := config.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying OCR request", "provider", config.Provider, "attempt", n+1, "err", utils.MaskSensitiveError(err))
		}),
	)
}
