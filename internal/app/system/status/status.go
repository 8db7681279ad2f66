// internal/app/system/status/status.go

// Package status holds the user account status vocabulary.
package status

const (
	Active   = "active"
	Disabled = "disabled"
)

// IsValid reports whether s is a known account status.
func IsValid(s string) bool {
	return s == Active || s == Disabled
}
