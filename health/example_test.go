package health_test

import (
	"context"
	"fmt"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/health"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/resilience"
)

func ExampleNewBackendChecker() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2})
	checker := health.NewBackendChecker(cb, "http://localhost:3000")

	fmt.Println(checker.Check(context.Background()).Status)
	cb.RecordFailure()
	cb.RecordFailure()
	fmt.Println(checker.Check(context.Background()).Status)
	// Output:
	// healthy
	// unhealthy
}

func ExampleAggregator_CheckAll() {
	agg := health.NewAggregator(health.AggregatorConfig{})
	agg.Register(health.NewCacheChecker(func() int { return 3 }))
	agg.Register(health.NewCheckerFunc("validator", func(context.Context) health.Result {
		return health.Degraded("slow responses")
	}))

	report := agg.CheckAll(context.Background())
	fmt.Println(report.Status)
	// Output: degraded
}
