package sendtab

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encryptLegacyForTest builds an "aesgcm" content-encoded payload the way a
// push server would, deriving keys the same way DecryptLegacy expects: the
// salt and sender ("dh") public key travel out-of-band rather than embedded
// in the body, per §4.5.
func encryptLegacyForTest(t *testing.T, target *PublicKeys, plaintext []byte) (ciphertext, salt, dh []byte) {
	t.Helper()

	senderPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	shared, err := senderPriv.ECDH(target.Pub)
	require.NoError(t, err)

	salt = make([]byte, saltLength)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	ikm, err := hkdfExpand(shared, target.Auth, []byte("Content-Encoding: auth\x00"), 32)
	require.NoError(t, err)
	cek, err := hkdfExpand(ikm, salt, []byte("Content-Encoding: aesgcm\x00"), cekLength)
	require.NoError(t, err)
	nonce, err := hkdfExpand(ikm, salt, []byte("Content-Encoding: nonce\x00"), nonceLength)
	require.NoError(t, err)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	padded := make([]byte, 2, 2+len(plaintext))
	binary.BigEndian.PutUint16(padded, 0)
	padded = append(padded, plaintext...)

	return gcm.Seal(nil, nonce, padded, nil), salt, senderPriv.PublicKey().Bytes()
}

func TestEncryptDecryptPayloadRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKeys()
	require.NoError(t, err)
	pub := priv.Public()

	plaintext := []byte(`{"entries":[{"title":"Example","url":"https://example.com"}]}`)

	ciphertext, err := EncryptPayload(pub, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptPayload(priv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptPayloadWrongKeyFails(t *testing.T) {
	priv, err := GeneratePrivateKeys()
	require.NoError(t, err)
	other, err := GeneratePrivateKeys()
	require.NoError(t, err)

	ciphertext, err := EncryptPayload(priv.Public(), []byte("hello"))
	require.NoError(t, err)

	_, err = DecryptPayload(other, ciphertext)
	require.Error(t, err)
}

func TestEncryptPayloadUniqueCiphertexts(t *testing.T) {
	priv, err := GeneratePrivateKeys()
	require.NoError(t, err)
	pub := priv.Public()

	c1, err := EncryptPayload(pub, []byte("hello"))
	require.NoError(t, err)
	c2, err := EncryptPayload(pub, []byte("hello"))
	require.NoError(t, err)

	assert.NotEqual(t, c1, c2, "fresh ephemeral keys should produce distinct ciphertexts")
}

func TestDecryptLegacyRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKeys()
	require.NoError(t, err)
	pub := priv.Public()

	plaintext := []byte(`{"entries":[{"title":"Example","url":"https://example.com"}]}`)
	ciphertext, salt, dh := encryptLegacyForTest(t, pub, plaintext)

	decrypted, err := DecryptLegacy(priv, ciphertext, salt, dh)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptLegacyWrongKeyFails(t *testing.T) {
	priv, err := GeneratePrivateKeys()
	require.NoError(t, err)
	other, err := GeneratePrivateKeys()
	require.NoError(t, err)

	ciphertext, salt, dh := encryptLegacyForTest(t, priv.Public(), []byte("hello"))

	_, err = DecryptLegacy(other, ciphertext, salt, dh)
	require.Error(t, err)
}

func TestDecryptLegacyRejectsTruncatedPayload(t *testing.T) {
	priv, err := GeneratePrivateKeys()
	require.NoError(t, err)
	pub := priv.Public()

	_, salt, dh := encryptLegacyForTest(t, pub, []byte("hello"))

	_, err = DecryptLegacy(priv, []byte("short"), salt, dh)
	require.Error(t, err)
}
