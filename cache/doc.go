// Package cache provides response caching partitioned by trust token.
//
// ResponseCache stores payloads under a structured Key whose Partition
// comes from auth.PartitionKey, and can drop a whole partition at once.
// TrustedCache layers the hit protocol on top: every hit is re-validated
// against the trust authority before it is served.
//
// MemoryCache is a plain TTL cache used by the resilient client.
package cache
