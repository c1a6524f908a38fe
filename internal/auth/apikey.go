package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredential = errors.New("invalid credential")

// HashKey returns the bcrypt hash stored in BACKEND_API_KEY_HASH.
func HashKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// KeyChecker validates the shared-secret header. When a hash is configured it
// wins over the plain secret.
type KeyChecker struct {
	secret string
	hash   []byte
}

func NewKeyChecker(secret, hash string) *KeyChecker {
	kc := &KeyChecker{secret: secret}
	if hash != "" {
		kc.hash = []byte(hash)
	}
	return kc
}

func (k *KeyChecker) Check(key string) error {
	if key == "" {
		return ErrInvalidCredential
	}
	if len(k.hash) > 0 {
		if err := bcrypt.CompareHashAndPassword(k.hash, []byte(key)); err != nil {
			return ErrInvalidCredential
		}
		return nil
	}
	if k.secret == "" || subtle.ConstantTimeCompare([]byte(k.secret), []byte(key)) != 1 {
		return ErrInvalidCredential
	}
	return nil
}
