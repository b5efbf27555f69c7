package fxa

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// pkceParams holds a PKCE code_verifier and its derived code_challenge,
// per RFC 7636.
type pkceParams struct {
	CodeVerifier  string
	CodeChallenge string
}

// generatePKCEParams produces a fresh code_verifier/code_challenge pair.
// The verifier is 32 random bytes, url-safe base64 encoded without padding
// (43 characters); the challenge is the SHA-256 digest of the verifier,
// encoded the same way (43 characters). Method is fixed to S256.
func generatePKCEParams() (pkceParams, error) {
	verifier, err := randomBase64URLString(32)
	if err != nil {
		return pkceParams{}, fmt.Errorf("failed to generate code_verifier: %w", err)
	}
	digest := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])
	return pkceParams{CodeVerifier: verifier, CodeChallenge: challenge}, nil
}

// generateState produces a 16-byte random OAuth `state` parameter, url-safe
// base64 encoded without padding (22 characters).
func generateState() (string, error) {
	s, err := randomBase64URLString(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return s, nil
}

func randomBase64URLString(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
