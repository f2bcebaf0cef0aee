// Package health reports gateway health.
//
// A Checker reports one component's Status: Healthy, Degraded or
// Unhealthy. The Aggregator runs registered checkers concurrently under a
// shared deadline and reports the worst status.
//
// BackendChecker derives backend health from the circuit breaker, so a
// health probe never adds load to a struggling backend:
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register(health.NewBackendChecker(breaker, backendURL))
//	agg.Register(health.NewCacheChecker(func() int { return rc.Stats().Keys }))
//
//	r := chi.NewRouter()
//	health.Routes(r, agg, backendURL)
package health
