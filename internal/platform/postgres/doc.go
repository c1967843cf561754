// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store and internal/queue
// packages. It handles the details of query execution, data mapping between
// domain entities and database records, and translation of driver errors
// into the sentinel errors callers match on.
package postgres
