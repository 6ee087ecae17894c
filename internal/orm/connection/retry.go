package connection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxRetries is the default number of connect attempts
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrConnectFailed is returned when every connect attempt failed
var ErrConnectFailed = errors.New("engine connect failed")

// RetryConfig configures retries of the engine connect
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// connectEngine connects the engine, backing off exponentially between
// attempts
func (c *Connection) connectEngine(ctx context.Context) error {
	config := c.opts.Retry
	if config == nil || config.MaxRetries < 1 {
		config = &RetryConfig{MaxRetries: 1}
	}
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("connect cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		err := c.engine.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		c.log.Warnw("engine connect failed", "attempt", attempt+1, "error", err)

		if attempt == config.MaxRetries-1 {
			break
		}
		backoff := config.BaseBackoff * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrConnectFailed, config.MaxRetries, lastErr)
}
