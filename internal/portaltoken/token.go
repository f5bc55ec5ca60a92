// Package portaltoken generates the bearer tokens behind portal share
// URLs. Possession of the token is the whole credential, so generation
// uses crypto/rand and comparisons are constant-time.
package portaltoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

const entropyBytes = 32

// New returns a fresh URL-safe token with 32 bytes of entropy.
func New() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Equal compares two tokens in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
