// internal/app/system/authutil/authutil.go

// Package authutil holds password hashing and validation used by the login
// and registration handlers. Hashing is bcrypt; validation enforces length
// bounds and rejects a short list of notoriously common passwords.
package authutil

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password accepted.
	MinPasswordLength = 6
	// MaxPasswordLength caps input before it reaches bcrypt, which
	// silently truncates at 72 bytes.
	MaxPasswordLength = 128
)

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordTooLong  = errors.New("password is too long")
	ErrPasswordCommon   = errors.New("password is too common")
)

// commonPasswords are rejected outright, case-insensitively.
var commonPasswords = map[string]bool{
	"123456":     true,
	"1234567":    true,
	"12345678":   true,
	"123456789":  true,
	"password":   true,
	"password1":  true,
	"qwerty":     true,
	"abc123":     true,
	"iloveyou":   true,
	"letmein":    true,
	"football":   true,
	"welcome":    true,
	"monkey":     true,
	"dragon":     true,
	"sunshine":   true,
	"princess":   true,
	"trustno1":   true,
}

// ValidatePassword checks a candidate password against the rules.
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(pw) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	if commonPasswords[strings.ToLower(pw)] {
		return ErrPasswordCommon
	}
	return nil
}

// PasswordRules returns a human-readable description of the password rules,
// suitable for error messages.
func PasswordRules() string {
	return fmt.Sprintf("Passwords must be at least %d characters and not a commonly used password.", MinPasswordLength)
}

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
