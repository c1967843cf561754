// Package redact scrubs sensitive material from strings bound for logs
// or API error responses: connection credentials, tokens and keys, task
// and user identifiers, email addresses, filesystem paths, and raw SQL
// that may embed user data.
package redact

import "regexp"

// rule pairs a pattern with the placeholder substituted for its matches.
type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules are applied in order; earlier rules win where matches would
// overlap (the JWT rule runs before the generic key rule so a labelled
// token is reported as a token, not a key).
var rules = []rule{
	// URL-embedded credentials: everything between scheme and host.
	{regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|redis|amqp|mongodb)://[^@\s]+@`), "[REDACTED_CREDENTIAL]"},

	// password=..., pwd: ... parameters.
	{regexp.MustCompile(`(?i)(password|passwd|pwd)['"]?[=:]\s?['"]?[^'"&\s]+`), "[REDACTED_CREDENTIAL]"},

	// JWTs: three dot-separated base64url segments, header starting {"...
	{regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`), "[REDACTED_TOKEN]"},

	// Labelled keys and secrets.
	{regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|access[_-]?key)(['"]?[=:]\s?['"]?)[A-Za-z0-9_\-.~+/]{8,}`), "[REDACTED_KEY]"},

	// AWS-style access key ids.
	{regexp.MustCompile(`\bAKIA[A-Z0-9]{8,}\b`), "[REDACTED_KEY]"},

	// UUIDs name users, tasks, and jobs.
	{regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), "[REDACTED_ID]"},

	// Email addresses.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},

	// SQL statements surfaced by driver errors carry bound values inline.
	{regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b[^;]*`), "[REDACTED_SQL]"},

	// Filesystem paths.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), "[REDACTED_PATH]"},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(\\[^\\\s]+)+`), "[REDACTED_PATH]"},
}

// String replaces sensitive fragments of input with placeholders.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error redacts an error's message. A nil error yields the empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
