// Package queue implements the asynchronous job pipeline: a durable job
// store abstraction, a pure retry policy, a bounded worker pool with a
// global dequeue rate limiter, pluggable idempotent job handlers, and the
// transactional enqueue gateway that pairs entity writes with job inserts.
// Task mutations flow through the gateway so that the entity change and its
// job are durably committed together, then workers drain the store with
// at-least-once delivery and bounded retries.
package queue
