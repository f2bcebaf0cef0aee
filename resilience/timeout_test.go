package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	if got := NewTimeout(TimeoutConfig{}).Config().Timeout; got != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", got)
	}
}

func TestTimeout_Execute(t *testing.T) {
	backendErr := errors.New("backend returned 502")

	tests := []struct {
		name    string
		timeout time.Duration
		op      func(ctx context.Context) error
		wantErr error
	}{
		{
			name:    "completes in time",
			timeout: time.Second,
			op:      func(ctx context.Context) error { return nil },
		},
		{
			name:    "passes through op error",
			timeout: time.Second,
			op:      func(ctx context.Context) error { return backendErr },
			wantErr: backendErr,
		},
		{
			name:    "slow op times out",
			timeout: 10 * time.Millisecond,
			op: func(ctx context.Context) error {
				time.Sleep(200 * time.Millisecond)
				return nil
			},
			wantErr: ErrTimeout,
		},
		{
			name:    "op observing its deadline maps to ErrTimeout",
			timeout: 10 * time.Millisecond,
			op: func(ctx context.Context) error {
				<-ctx.Done()
				return fmt.Errorf("dial: %w", ctx.Err())
			},
			wantErr: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTimeout(TimeoutConfig{Timeout: tt.timeout}).Execute(context.Background(), tt.op)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeout_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := NewTimeout(TimeoutConfig{Timeout: time.Second}).Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestTimeout_DerivedContextIsCancelled(t *testing.T) {
	observed := make(chan bool, 1)

	err := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond}).Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			observed <- true
		case <-time.After(time.Second):
			observed <- false
		}
		return nil
	})

	if err != ErrTimeout {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	select {
	case ok := <-observed:
		if !ok {
			t.Error("operation context was not cancelled at the deadline")
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("operation goroutine did not finish")
	}
}
