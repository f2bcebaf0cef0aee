package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the deadline wrapper.
type TimeoutConfig struct {
	// Timeout is the deadline applied to every call.
	// Default: 30 seconds
	Timeout time.Duration
}

// Timeout gives each operation a fixed deadline.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new deadline wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Timeout{config: config}
}

// Execute runs op under the deadline. If the deadline passes first,
// Execute returns ErrTimeout without waiting for op; op keeps its derived
// context and its result is discarded. A parent cancellation is returned
// as the parent's error.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}
