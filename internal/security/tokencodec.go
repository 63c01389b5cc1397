// Package security implements the opaque session token codec and secret
// loading. Tokens are XChaCha20-Poly1305 ciphertexts of the session ID
// under a key derived from an externally provisioned secret, so they are
// reversible only with that secret and leak nothing about the ID.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrDecodeFailure is returned for any malformed or foreign token.
	// All decode failures collapse to this one error so callers cannot
	// distinguish why a token was rejected.
	ErrDecodeFailure = errors.New("token decode failure")
	// ErrInvalidSecret is returned when the provisioned secret is missing
	// or too short.
	ErrInvalidSecret = errors.New("invalid token secret")
)

// MinSecretLen is the minimum accepted secret length in bytes.
const MinSecretLen = 16

// tokenKeyInfo namespaces the HKDF derivation; changing it invalidates
// all previously issued tokens.
const tokenKeyInfo = "session-token-v1"

// TokenCodec encodes session IDs into opaque bearer tokens and back.
type TokenCodec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewTokenCodec derives the token key from secret via HKDF-SHA256 and
// returns a codec. The secret must be externally provisioned and stable
// across restarts; there is deliberately no runtime-derived default.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrInvalidSecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(tokenKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &TokenCodec{aead: aead}, nil
}

// Encode returns an opaque token for sessionID: base64url(nonce || ciphertext).
func (c *TokenCodec) Encode(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("empty session id")
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := c.aead.Seal(nonce, nonce, []byte(sessionID), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode recovers the session ID from a token issued by Encode under the
// same secret. Tokens issued under a different secret, truncated tokens,
// and garbage all fail with ErrDecodeFailure.
func (c *TokenCodec) Decode(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrDecodeFailure
	}
	ns := c.aead.NonceSize()
	if len(raw) <= ns {
		return "", ErrDecodeFailure
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrDecodeFailure
	}
	return string(plain), nil
}
