package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds each check run; a check still running when it
	// elapses is reported unhealthy.
	// Default: 5 seconds
	Timeout time.Duration
}

// Aggregator runs registered checkers concurrently and folds their
// results into one Report.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []Checker
}

// Report is the outcome of one CheckAll run.
type Report struct {
	Status  Status
	Results map[string]Result
}

// NewAggregator creates a new health aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Aggregator{timeout: config.Timeout}
}

// Register adds checker. A checker with the same name is replaced in
// place.
func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.IndexFunc(a.checkers, func(c Checker) bool { return c.Name() == checker.Name() })
	if i >= 0 {
		a.checkers[i] = checker
		return
	}
	a.checkers = append(a.checkers, checker)
}

// CheckerNames returns checker names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs the checker called name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := slices.IndexFunc(a.checkers, func(c Checker) bool { return c.Name() == name })
	var checker Checker
	if i >= 0 {
		checker = a.checkers[i]
	}
	a.mu.RUnlock()

	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// CheckAll runs every registered check concurrently.
func (a *Aggregator) CheckAll(ctx context.Context) Report {
	a.mu.RLock()
	checkers := slices.Clone(a.checkers)
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Go(func() { results[i] = runCheck(ctx, checker) })
	}
	wg.Wait()

	byName := make(map[string]Result, len(checkers))
	for i, checker := range checkers {
		byName[checker.Name()] = results[i]
	}
	return Report{Status: OverallStatus(byName), Results: byName}
}

// OverallStatus is the worst status among results, or StatusHealthy
// when there are none.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		overall = max(overall, result.Status)
	}
	return overall
}

// runCheck runs checker and gives up when ctx ends. The checker goroutine
// is left to finish on its own.
func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		done <- result.WithDuration(time.Since(start))
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		result := Unhealthy("check timed out", ErrCheckTimeout).WithDuration(time.Since(start))
		result.Timestamp = start
		return result
	}
}
