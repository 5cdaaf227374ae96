package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := base64.RawURLEncoding
	hdr, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	input := enc.EncodeToString(hdr) + "." + enc.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return input + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestDevTokens(t *testing.T) {
	v := NewVerifier("", "")
	p, err := v.Verify("acme:Admin")
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "acme", Role: "admin"}, p)
	assert.True(t, p.IsAdmin())

	_, err = v.Verify("acme")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACTokens(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	now := time.Unix(1_700_000_000, 0)
	v.now = func() time.Time { return now }

	p, err := v.Verify(signHS256(t, "s3cret", map[string]any{"tenant": "acme", "exp": now.Add(time.Minute).Unix()}))
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Tenant)
	assert.Equal(t, "user", p.Role)
	assert.False(t, p.IsAdmin())

	cases := map[string]string{
		"wrong secret":   signHS256(t, "other", map[string]any{"tenant": "acme"}),
		"expired":        signHS256(t, "s3cret", map[string]any{"tenant": "acme", "exp": now.Add(-time.Second).Unix()}),
		"missing tenant": signHS256(t, "s3cret", map[string]any{"role": "admin"}),
		"malformed":      "a.b",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
