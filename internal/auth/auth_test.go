package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyChecker_PlainSecret(t *testing.T) {
	kc := NewKeyChecker("s3cret", "")

	assert.NoError(t, kc.Check("s3cret"))
	assert.ErrorIs(t, kc.Check("wrong"), ErrInvalidCredential)
	assert.ErrorIs(t, kc.Check(""), ErrInvalidCredential)
}

func TestKeyChecker_HashWins(t *testing.T) {
	hash, err := HashKey("hashed-key")
	require.NoError(t, err)

	kc := NewKeyChecker("plain", hash)
	assert.NoError(t, kc.Check("hashed-key"))
	assert.ErrorIs(t, kc.Check("plain"), ErrInvalidCredential)
}

func TestKeyChecker_EmptySecretRejectsEverything(t *testing.T) {
	kc := NewKeyChecker("", "")
	assert.ErrorIs(t, kc.Check("anything"), ErrInvalidCredential)
}

func TestJWT_RoundTrip(t *testing.T) {
	tok, err := SignJWT("ui", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "ui", claims.Subject)

	_, err = ParseJWT(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestJWT_Expired(t *testing.T) {
	tok, err := SignJWT("ui", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(tok, "secret")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
