// Package shipper publishes emissions to a Redis pub/sub channel.
//
// Emit is non-blocking: emissions are queued in a bounded buffer and the
// oldest entry is evicted when it is full. Run drains the buffer, publishing
// each emission as JSON. When Redis is unreachable Run retries with truncated
// exponential backoff and jitter, resending the emission that failed before
// anything newer.
package shipper
