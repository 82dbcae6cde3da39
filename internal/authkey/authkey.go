// Package authkey verifies the operator API key against a bcrypt hash held in
// configuration. Keys are never stored in clear.
package authkey

import "golang.org/x/crypto/bcrypt"

// Verify reports whether key matches the configured bcrypt hash. An empty
// hash means auth is disabled and every key (including none) is accepted.
func Verify(hash, key string) bool {
	if hash == "" {
		return true
	}
	if key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// Hash derives a bcrypt hash for a key; used by the keygen helper.
func Hash(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
