package utils

import (
	"errors"
	"html"
	"strings"
	"unicode"
)

var (
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper   = errors.New("password must contain an uppercase letter")
	ErrPasswordNoLower   = errors.New("password must contain a lowercase letter")
	ErrPasswordNoDigit   = errors.New("password must contain a digit")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidInviteCode = errors.New("invalid invite code")
)

const MinPasswordLength = 8

// ValidatePassword enforces the signup password policy before the
// request ever leaves the client.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return ErrPasswordNoUpper
	}
	if !lower {
		return ErrPasswordNoLower
	}
	if !digit {
		return ErrPasswordNoDigit
	}
	return nil
}

// ValidateEmail is a shape check only; the server owns real validation.
func ValidateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateInviteCode checks the code's shape before a join request:
// 4 to 32 characters, letters, digits and dashes only.
func ValidateInviteCode(code string) error {
	if len(code) < 4 || len(code) > 32 {
		return ErrInvalidInviteCode
	}
	for _, r := range code {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return ErrInvalidInviteCode
		}
	}
	return nil
}

// SanitizeInput HTML-escapes user text before transport. Defense in
// depth at the edge of the replica; stored values round-trip through
// DecodeEntities for display.
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// DecodeEntities reverses SanitizeInput for display.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}
