package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyLength = 32

// Keys are the independent keys derived from the session secret.
type Keys struct {
	SessionHash  []byte
	SessionBlock []byte
	CSRF         []byte
}

// DeriveKeys expands secret into one independent key per use.
func DeriveKeys(secret []byte) (Keys, error) {
	if len(secret) == 0 {
		return Keys{}, fmt.Errorf("auth: session secret is empty")
	}
	var keys Keys
	for _, k := range []struct {
		info string
		dst  *[]byte
	}{
		{"portfolio session hash", &keys.SessionHash},
		{"portfolio session block", &keys.SessionBlock},
		{"portfolio csrf", &keys.CSRF},
	} {
		key := make([]byte, keyLength)
		if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(k.info)), key); err != nil {
			return Keys{}, fmt.Errorf("auth: derive %s key: %w", k.info, err)
		}
		*k.dst = key
	}
	return keys, nil
}

// SessionKeyPairs returns the hash and block keys in the order gorilla stores expect.
func (k Keys) SessionKeyPairs() [][]byte {
	return [][]byte{k.SessionHash, k.SessionBlock}
}
