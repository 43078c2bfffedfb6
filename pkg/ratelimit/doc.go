// Package ratelimit provides fixed-window, per-client rate limiting for the mail route.
//
// Counters live behind the Store interface: MemoryStore for a single replica and
// RedisStore when several replicas must share one budget per client.
package ratelimit
