package fxa

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/mozilla/fxa-client-go/internal/fxaerr"
)

// scopedKeysFlow is the ephemeral ECDH P-256 keypair generated when a caller
// opts into the scoped-keys OAuth extension. Its public half is published
// as the `keys_jwk` query parameter; its private half decrypts the
// server-delivered `keys_jwe` on flow completion.
type scopedKeysFlow struct {
	priv *ecdsa.PrivateKey
}

func newScopedKeysFlow() (*scopedKeysFlow, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fxaerr.NewCryptoError("failed to generate scoped-keys flow keypair", err)
	}
	return &scopedKeysFlow{priv: priv}, nil
}

// publicJWK is the minimal public-key JWK shape published by the scoped-keys
// extension: crv, kty, x, y, field order matched to the wire form the
// identity provider expects.
type publicJWK struct {
	Crv string `json:"crv"`
	Kty string `json:"kty"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// keysJWK returns the url-safe-base64-no-padding-encoded public JWK to
// publish as the `keys_jwk` query parameter.
func (f *scopedKeysFlow) keysJWK() (string, error) {
	pub := f.priv.PublicKey
	jwk := publicJWK{
		Crv: "P-256",
		Kty: "EC",
		X:   base64.RawURLEncoding.EncodeToString(pub.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(pub.Y.FillBytes(make([]byte, 32))),
	}
	raw, err := json.Marshal(jwk)
	if err != nil {
		return "", fxaerr.NewSerializationError("failed to marshal scoped-keys JWK", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decryptKeysJWE decrypts the compact JWE the server returns alongside an
// access token, recovering one ScopedKey per requested scope.
func (f *scopedKeysFlow) decryptKeysJWE(compactJWE string) (map[string]ScopedKey, error) {
	jwe, err := jose.ParseEncrypted(
		compactJWE,
		[]jose.KeyAlgorithm{jose.ECDH_ES},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, fxaerr.NewCryptoError("failed to parse keys_jwe", err)
	}

	plaintext, err := jwe.Decrypt(f.priv)
	if err != nil {
		return nil, fxaerr.NewCryptoError("failed to decrypt keys_jwe", err)
	}

	var keys map[string]ScopedKey
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fxaerr.NewSerializationError("failed to parse decrypted scoped keys", err)
	}
	return keys, nil
}

// validateScopedKeysParam is a small guard used by tests and callers that
// want to assert the published keys_jwk has the expected encoded length
// (168 characters for a standard P-256 public JWK, per the OAuth URL shape
// invariant).
func validateScopedKeysParam(keysJWK string) error {
	if len(keysJWK) != 168 {
		return fmt.Errorf("unexpected keys_jwk length %d, want 168", len(keysJWK))
	}
	return nil
}
