// Package store defines the persistence interfaces for tasks and users,
// plus the shared transaction helper. Implementations live in
// internal/platform/postgres; services depend only on these interfaces so
// tests can substitute in-memory fakes.
package store
