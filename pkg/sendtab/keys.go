// Package sendtab implements the send-tab cryptographic envelope: KEK
// derivation from a Sync scoped key, per-device ephemeral ECDH keypairs,
// and the Web-Push-style ECE authenticated encryption used to deliver a
// tab between two devices on the same account.
package sendtab

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

const (
	serializationVersion = 1
	authSecretLength     = 16
)

// PrivateKeys is a device's local send-tab keypair plus its Web-Push auth
// secret. It is what gets stored, serialized, under commands_data["send-tab"].
type PrivateKeys struct {
	Auth []byte
	Priv *ecdh.PrivateKey
}

// PublicKeys is the public half advertised (KEK-wrapped) to other devices.
type PublicKeys struct {
	Auth []byte
	Pub  *ecdh.PublicKey
}

// GeneratePrivateKeys creates a fresh P-256 ECDH keypair and a random
// 16-byte Web-Push auth secret, all sourced from the system CSPRNG.
func GeneratePrivateKeys() (*PrivateKeys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate send-tab keypair: %w", err)
	}
	auth := make([]byte, authSecretLength)
	if _, err := rand.Read(auth); err != nil {
		return nil, fmt.Errorf("failed to generate auth secret: %w", err)
	}
	return &PrivateKeys{Auth: auth, Priv: priv}, nil
}

// Public derives the advertisable public keypair from a private one. The
// public key is never persisted; it is reconstructed from the private key
// whenever needed, per the §4.5 serialization rule.
func (k *PrivateKeys) Public() *PublicKeys {
	return &PublicKeys{Auth: k.Auth, Pub: k.Priv.PublicKey()}
}

// Serialize renders the private keypair to the compact version-tagged byte
// form: [version=1, auth_len, auth_bytes..., priv_len, priv_bytes...].
func (k *PrivateKeys) Serialize() []byte {
	privBytes := k.Priv.Bytes()
	out := make([]byte, 0, 2+len(k.Auth)+1+len(privBytes))
	out = append(out, serializationVersion)
	out = append(out, byte(len(k.Auth)))
	out = append(out, k.Auth...)
	out = append(out, byte(len(privBytes)))
	out = append(out, privBytes...)
	return out
}

// DeserializeKey parses the compact byte form produced by Serialize. An
// unrecognized version byte is an error.
func DeserializeKey(raw []byte) (*PrivateKeys, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("empty send-tab key blob")
	}
	if raw[0] != serializationVersion {
		return nil, fmt.Errorf("unknown send-tab key serialization version %d", raw[0])
	}
	pos := 1
	if pos >= len(raw) {
		return nil, fmt.Errorf("truncated send-tab key blob")
	}
	authLen := int(raw[pos])
	pos++
	if pos+authLen > len(raw) {
		return nil, fmt.Errorf("truncated auth secret in send-tab key blob")
	}
	auth := append([]byte(nil), raw[pos:pos+authLen]...)
	pos += authLen

	if pos >= len(raw) {
		return nil, fmt.Errorf("truncated send-tab key blob")
	}
	privLen := int(raw[pos])
	pos++
	if pos+privLen > len(raw) {
		return nil, fmt.Errorf("truncated private key in send-tab key blob")
	}
	privBytes := raw[pos : pos+privLen]

	priv, err := ecdh.P256().NewPrivateKey(privBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse send-tab private key: %w", err)
	}

	return &PrivateKeys{Auth: auth, Priv: priv}, nil
}

// Serialize renders a PublicKeys to an uncompressed-point wire form:
// [auth_len, auth_bytes..., pub_len, pub_bytes...] — the bundle that gets
// wrapped with the KEK and advertised as a device's send-tab command data.
func (k *PublicKeys) Serialize() []byte {
	pubBytes := k.Pub.Bytes()
	out := make([]byte, 0, 2+len(k.Auth)+len(pubBytes))
	out = append(out, byte(len(k.Auth)))
	out = append(out, k.Auth...)
	out = append(out, byte(len(pubBytes)))
	out = append(out, pubBytes...)
	return out
}

// DeserializePublicKeys parses the wire form produced by PublicKeys.Serialize.
func DeserializePublicKeys(raw []byte) (*PublicKeys, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("empty public send-tab key bundle")
	}
	pos := 0
	authLen := int(raw[pos])
	pos++
	if pos+authLen > len(raw) {
		return nil, fmt.Errorf("truncated auth secret in public key bundle")
	}
	auth := append([]byte(nil), raw[pos:pos+authLen]...)
	pos += authLen

	if pos >= len(raw) {
		return nil, fmt.Errorf("truncated public key bundle")
	}
	pubLen := int(raw[pos])
	pos++
	if pos+pubLen > len(raw) {
		return nil, fmt.Errorf("truncated public key in bundle")
	}
	pub, err := ecdh.P256().NewPublicKey(raw[pos : pos+pubLen])
	if err != nil {
		return nil, fmt.Errorf("failed to parse public send-tab key: %w", err)
	}
	return &PublicKeys{Auth: auth, Pub: pub}, nil
}
