package embed

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidMaxAttempts is returned when maxAttempts is less than 1.
var ErrInvalidMaxAttempts = errors.New("embed: maxAttempts must be positive")

type retrying struct {
	next      Embedder
	attempts  int
	baseDelay time.Duration
	logger    *slog.Logger
}

// WithRetry wraps e so failed batches are retried with exponential backoff.
// ErrEmptyText is returned immediately.
func WithRetry(e Embedder, attempts int, baseDelay time.Duration, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{next: e, attempts: attempts, baseDelay: baseDelay, logger: logger}
}

func (r *retrying) Model() string {
	return r.next.Model()
}

func (r *retrying) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return single(ctx, r, text)
}

func (r *retrying) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	var out [][]float32
	err := RetryWithBackoff(ctx, r.logger, func() error {
		var err error
		out, err = r.next.EmbedTexts(ctx, texts)
		return err
	}, r.attempts, r.baseDelay)
	return out, err
}

// RetryWithBackoff runs operation up to maxAttempts times, sleeping
// baseDelay * 2^(attempt-1) between attempts.
func RetryWithBackoff(ctx context.Context, logger *slog.Logger, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("embedding succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(lastErr, ErrEmptyText) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}

		logger.Debug("embedding failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)
		if attempt == maxAttempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
