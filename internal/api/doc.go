// Package api contains the HTTP handlers for the task, auth, and queue
// endpoints. Handlers decode and validate requests, call into the service
// layer, and translate service errors into the JSON error responses the
// shared package defines.
package api
