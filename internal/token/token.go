// Package token inspects bearer tokens for lifecycle decisions. The
// client never verifies signatures; the server remains the trust root,
// and a forged expiry only changes when the client asks for a refresh.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reason classifies why a token failed validation.
type Reason string

const (
	ReasonMissing   Reason = "missing"
	ReasonMalformed Reason = "malformed"
	ReasonInvalid   Reason = "invalid"
	ReasonExpired   Reason = "expired"
)

// Status is the result of Validate.
type Status struct {
	Valid  bool
	Reason Reason
}

var parser = jwt.NewParser()

// expiresAt returns the token's expiry, or ok=false when the token is
// unparseable or carries no exp claim.
func expiresAt(tokenString string) (time.Time, bool) {
	tok, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token is unusable. A token without an
// exp claim counts as expired.
func Expired(tokenString string) bool {
	exp, ok := expiresAt(tokenString)
	if !ok {
		return true
	}
	return !time.Now().Before(exp)
}

// ExpiresWithin reports whether the token expires inside the threshold,
// used to refresh proactively before requests start failing.
func ExpiresWithin(tokenString string, threshold time.Duration) bool {
	exp, ok := expiresAt(tokenString)
	if !ok {
		return true
	}
	return time.Now().Add(threshold).After(exp)
}

// Validate classifies a token for the session controller.
func Validate(tokenString string) Status {
	if tokenString == "" {
		return Status{Reason: ReasonMissing}
	}
	tok, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return Status{Reason: ReasonMalformed}
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Status{Reason: ReasonInvalid}
	}
	if !time.Now().Before(exp.Time) {
		return Status{Reason: ReasonExpired}
	}
	return Status{Valid: true}
}
