package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{Now: clock.Now})
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.Cooldown != 60*time.Second {
		t.Errorf("Cooldown = %v, want 60s", cb.config.Cooldown)
	}
}

func TestCircuitBreaker_OpensAfterExactlyThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)

	for i := 1; i <= 4; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures state = %v, want closed", i, cb.State())
		}
		if cb.IsOpen() {
			t.Fatalf("after %d failures IsOpen() = true, want false", i)
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("after 5 failures state = %v, want open", cb.State())
	}
	if !cb.IsOpen() {
		t.Error("IsOpen() = false immediately after opening, want true")
	}
}

func TestCircuitBreaker_LazyHalfOpen(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	clock.Advance(60 * time.Second)
	if !cb.IsOpen() {
		t.Error("IsOpen() at exactly the cooldown boundary = false, want true")
	}

	clock.Advance(time.Millisecond)
	// Time alone does not move the state.
	if cb.State() != StateOpen {
		t.Errorf("State() before next check = %v, want open", cb.State())
	}
	if cb.IsOpen() {
		t.Error("IsOpen() after cooldown = true, want false")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("State() after check = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	clock.Advance(61 * time.Second)
	_ = cb.IsOpen()

	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock)
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	clock.Advance(61 * time.Second)
	_ = cb.IsOpen()

	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want open", cb.State())
	}
	if !cb.IsOpen() {
		t.Error("IsOpen() = false, want true with a fresh cooldown")
	}

	m := cb.Metrics()
	if want := clock.Now().Add(60 * time.Second); !m.NextAttempt.Equal(want) {
		t.Errorf("NextAttempt = %v, want %v", m.NextAttempt, want)
	}
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := newTestBreaker(newFakeClock())

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}
	cb.RecordSuccess()
	for i := 0; i < 4; i++ {
		cb.RecordFailure()
	}

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed: failures are consecutive", cb.State())
	}
}

func TestCircuitBreaker_SuccessFromOpenForcesClosed(t *testing.T) {
	cb := newTestBreaker(newFakeClock())
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ExecuteShortCircuits(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Now: newFakeClock().Now})
	testErr := errors.New("backend down")

	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		}); err != testErr {
			t.Fatalf("Execute() error = %v, want %v", err, testErr)
		}
	}

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("operation ran while circuit was open")
	}
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("client error")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, ignored)
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return ignored })

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		Now:              clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	cb.RecordFailure()
	clock.Advance(61 * time.Second)
	_ = cb.IsOpen()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := newTestBreaker(newFakeClock())
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}

	cb.Reset()

	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("after Reset state = %v failures = %d, want closed/0", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cb.RecordFailure()
				_ = cb.IsOpen()
			}
		}()
	}
	wg.Wait()

	if cb.Failures() != 500 {
		t.Errorf("Failures() = %d, want 500", cb.Failures())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
