package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecutor_NoOptions(t *testing.T) {
	e := NewExecutor()

	called := false
	err := e.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	if err != nil || !called {
		t.Errorf("Execute() error = %v, called = %v", err, called)
	}
	if e.CircuitBreaker() != nil {
		t.Error("CircuitBreaker() != nil without WithCircuitBreaker")
	}
}

func TestExecutor_TimeoutCountsAsBreakerFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	e := NewExecutor(WithCircuitBreaker(cb), WithTimeout(10*time.Millisecond))

	err := e.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("breaker state = %v, want open", cb.State())
	}

	err = e.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("operation ran through an open breaker")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestExecutor_SharedBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})
	validate := NewExecutor(WithCircuitBreaker(cb))
	process := NewExecutor(WithCircuitBreaker(cb))
	fail := func(ctx context.Context) error { return errors.New("unreachable") }

	_ = validate.Execute(context.Background(), fail)
	_ = process.Execute(context.Background(), fail)

	if cb.State() != StateOpen {
		t.Errorf("shared breaker state = %v, want open", cb.State())
	}
}
