package sendtab

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const kekInfo = "identity.mozilla.com/picl/v1/oldsync/sendtab-kek\x00"

// Entry is a single tab being sent: its title and URL.
type Entry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Payload is the plaintext send-tab command content.
type Payload struct {
	Entries []Entry `json:"entries"`
}

// wrapKey derives the AES-128 key used to wrap/unwrap a device's public
// send-tab keys with the account's KEK.
func wrapKey(kek *KEK) ([]byte, error) {
	return hkdfExpand(kek.KSync, kek.KXCS, []byte(kekInfo), cekLength)
}

// WrapPublicKeys encrypts a device's public send-tab keys with the account
// KEK, returning the base64url-no-pad string advertised as a device's
// send-tab command data.
func WrapPublicKeys(kek *KEK, pub *PublicKeys) (string, error) {
	key, err := wrapKey(kek)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to init KEK cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to init KEK GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate KEK nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, pub.Serialize(), nil)
	return base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// UnwrapPublicKeys decrypts a device's advertised send-tab command data
// with the account KEK, recovering its public send-tab keys.
func UnwrapPublicKeys(kek *KEK, wrapped string) (*PublicKeys, error) {
	key, err := wrapKey(kek)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init KEK cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init KEK GCM: %w", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wrapped public keys: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, fmt.Errorf("wrapped public keys too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap public keys: %w", err)
	}
	return DeserializePublicKeys(plaintext)
}

// BuildSendCommand encrypts a tab-sharing payload to the target device's
// KEK-wrapped public keys, returning the opaque command payload invoked on
// the target via the server.
func BuildSendCommand(kek *KEK, wrappedTargetKeys string, payload Payload) (json.RawMessage, error) {
	targetPub, err := UnwrapPublicKeys(kek, wrappedTargetKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap target public keys: %w", err)
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send-tab payload: %w", err)
	}
	ciphertext, err := EncryptPayload(targetPub, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt send-tab payload: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(ciphertext)
	out, err := json.Marshal(encryptedEnvelope{EncryptedData: encoded})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send-tab command payload: %w", err)
	}
	return out, nil
}

// encryptedEnvelope is the JSON shape of an outbound/inbound send-tab
// command payload, carrying the base64url-no-pad ECE ciphertext.
type encryptedEnvelope struct {
	EncryptedData string `json:"encrypted"`
}

// DecryptCommand decrypts an inbound send-tab command payload using the
// local device's private send-tab keys.
func DecryptCommand(own *PrivateKeys, raw json.RawMessage) (Payload, error) {
	var envelope encryptedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Payload{}, fmt.Errorf("failed to parse send-tab command payload: %w", err)
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(envelope.EncryptedData)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to decode send-tab command payload: %w", err)
	}
	plaintext, err := DecryptPayload(own, ciphertext)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to decrypt send-tab command payload: %w", err)
	}
	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Payload{}, fmt.Errorf("failed to parse send-tab payload: %w", err)
	}
	return payload, nil
}
