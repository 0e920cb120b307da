package visualswe

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"
)

// retryable executes a function with exponential backoff retry logic.
// Waiting between attempts is interrupted by ctx.
func retryable(ctx context.Context, call func() error, max int, backoff time.Duration, log *slog.Logger) error {
	if max <= 0 {
		return call() // no retry
	}

	delay := backoff
	for i := 0; i <= max; i++ {
		err := call()
		if err == nil {
			if i > 0 {
				log.Debug("Attempt succeeded", "attempt", i+1)
			}
			return nil
		}
		if i == max || !shouldRetry(ctx, err) {
			log.Debug("Final attempt failed", "attempt", i+1, "error", err)
			return err
		}
		log.Debug("Attempt failed, retrying", "attempt", i+1, "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil
}

// shouldRetry rejects failures that another attempt cannot fix.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrMediaUnreadable) && !errors.Is(err, context.Canceled)
}

// preview returns at most n bytes of s for log records, cut on a rune
// boundary.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
