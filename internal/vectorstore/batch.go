package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
)

// sleepFn is swapped out in tests to observe pauses without waiting.
var sleepFn = sleepContext

// BatchOptions controls BatchAdd behavior.
type BatchOptions struct {
	// BatchSize is the number of documents per insert call.
	BatchSize int

	// Pause is the delay between batches. No pause follows the final
	// batch.
	Pause time.Duration

	// MaxRetries bounds retry attempts per batch for rate-limit-class
	// failures. Other failures are fatal immediately.
	MaxRetries int

	// BaseBackoff is the initial retry backoff; it doubles per attempt.
	BaseBackoff time.Duration
}

// BatchAdd inserts documents into the store in fixed-size batches with an
// inter-batch pause. Rate-limit-class failures are retried with exponential
// backoff up to MaxRetries per batch; exhausted retries and all other
// failures abort the call, returning the number of documents inserted so
// far alongside the error.
func BatchAdd(ctx context.Context, store Store, docs []Document, opts BatchOptions, logger *logging.Logger) (int, error) {
	if opts.BatchSize <= 0 {
		return 0, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, opts.BatchSize)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Second
	}

	added := 0
	for start := 0; start < len(docs); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		if err := addBatch(ctx, store, batch, opts, logger); err != nil {
			return added, fmt.Errorf("inserting batch starting at %d: %w", start, err)
		}
		added += len(batch)

		if end < len(docs) && opts.Pause > 0 {
			if err := sleepFn(ctx, opts.Pause); err != nil {
				return added, err
			}
		}
	}

	logger.Info(ctx, "batch insert complete", zap.Int("documents", added))
	return added, nil
}

// addBatch inserts one batch, retrying rate-limit failures with backoff.
func addBatch(ctx context.Context, store Store, batch []Document, opts BatchOptions, logger *logging.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := opts.BaseBackoff * time.Duration(1<<(attempt-1))
			logger.Warn(ctx, "rate limited, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			if err := sleepFn(ctx, backoff); err != nil {
				return err
			}
		}

		_, err := store.AddDocuments(ctx, batch)
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}

// IsRateLimited reports whether err is a rate-limit-class failure.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "429")
}

// sleepContext sleeps for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
