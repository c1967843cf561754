// Package config loads and validates application settings from environment
// variables and optional .env files. Server, database, cache, auth, and
// queue settings each get their own typed struct so components depend only
// on the section they need.
package config
