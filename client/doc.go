// Package client is a resilient client for the gateway API.
//
// Every request passes through a client-side circuit breaker and an
// offline check before it is sent with a per-attempt timeout. Retryable
// failures (network errors, timeouts, 5xx and 429) are retried with
// exponential backoff. Failures are returned as *TransportError, tagged
// with a Kind that decides retryability and a user-facing category.
//
// While offline, GET requests are answered from a short-lived response
// cache and mutating requests are queued. Run replays the queue in order
// once a Monitor reports the API reachable again:
//
//	conn := client.NewConnectivity(true)
//	c, err := client.New(client.Config{BaseURL: base, Connectivity: conn})
//	if err != nil {
//		return err
//	}
//	go client.NewMonitor(conn, client.MonitorConfig{BaseURL: base}).Run(ctx)
//	go c.Run(ctx)
//
// Successful JSON responses are checked against a reflected schema and
// stripped of script content before they are returned.
package client
