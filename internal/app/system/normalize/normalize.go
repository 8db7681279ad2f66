// internal/app/system/normalize/normalize.go

// Package normalize centralizes input normalization so stores and handlers
// agree on canonical forms. Every value that participates in a uniqueness
// constraint (emails, roles, scope types) must pass through here before it
// reaches a store.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// AuthMethod lowercases and trims an auth method ("internal", "google").
func AuthMethod(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status lowercases and trims a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role lowercases and trims a workspace role ("owner", "admin", "member").
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ScopeType lowercases and trims an invitation scope type
// ("workspace", "project").
func ScopeType(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a free-form query parameter. Case is preserved.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
