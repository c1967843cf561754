// Package domain holds the task and user entities along with their
// validation rules and status transition logic. Nothing here touches
// HTTP, SQL, or the job queue; those layers depend on domain, never the
// reverse.
package domain
