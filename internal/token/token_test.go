package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "1", "exp": exp.Unix()}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func tokenWithoutExp(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestExpired(t *testing.T) {
	assert.False(t, Expired(signedToken(t, time.Now().Add(time.Hour))))
	assert.True(t, Expired(signedToken(t, time.Now().Add(-time.Minute))))
	assert.True(t, Expired(tokenWithoutExp(t)))
	assert.True(t, Expired("not-a-token"))
}

func TestExpiresWithin(t *testing.T) {
	soon := signedToken(t, time.Now().Add(90*time.Second))
	assert.True(t, ExpiresWithin(soon, 2*time.Minute))
	assert.False(t, ExpiresWithin(soon, 30*time.Second))

	// Unparseable tokens always report as expiring.
	assert.True(t, ExpiresWithin("garbage", time.Minute))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		valid  bool
		reason Reason
	}{
		{"valid", signedToken(t, time.Now().Add(time.Hour)), true, ""},
		{"missing", "", false, ReasonMissing},
		{"malformed", "abc.def", false, ReasonMalformed},
		{"no exp claim", tokenWithoutExp(t), false, ReasonInvalid},
		{"expired", signedToken(t, time.Now().Add(-time.Hour)), false, ReasonExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Validate(tt.token)
			assert.Equal(t, tt.valid, st.Valid)
			assert.Equal(t, tt.reason, st.Reason)
		})
	}
}
