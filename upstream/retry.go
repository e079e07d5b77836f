package upstream

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Retrier runs storage writes with exponential backoff, for rate-limited
// backends behind the webhook path. Resolver logic is pure and never
// retried; only the persistence call at the end is.
type Retrier struct {
	BaseDelay   time.Duration
	MaxAttempts int
	Logger      *zap.Logger
}

// NewRetrier returns the standard write policy: backoff doubling from 2s,
// five attempts.
func NewRetrier(logger *zap.Logger) *Retrier {
	return &Retrier{
		BaseDelay:   2 * time.Second,
		MaxAttempts: 5,
		Logger:      logger,
	}
}

// Do runs op until it succeeds, attempts run out, or ctx is cancelled.
func (r *Retrier) Do(ctx context.Context, name string, op func() error) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := r.BaseDelay
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == r.MaxAttempts {
			break
		}
		logger.Warn("storage write failed, backing off",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	logger.Error("storage write failed permanently",
		zap.String("op", name),
		zap.Int("attempts", r.MaxAttempts),
		zap.Error(err))
	return err
}
