package sendtab

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// legacyRecordSize is the fixed 4096-byte record size. EncryptPayload writes
// it into the record-size field of the aes128gcm header; DecryptPayload and
// DecryptLegacy each handle a single record and do not read it.
const legacyRecordSize = 4096

const (
	cekLength   = 16 // AES-128-GCM
	nonceLength = 12
	saltLength  = 16
)

func hkdfExpand(secret, salt, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := hkdf.New(sha256.New, secret, salt, info).Read(out); err != nil {
		return nil, fmt.Errorf("hkdf expand failed: %w", err)
	}
	return out, nil
}

// webPushIKM derives the intermediate key material shared between sender
// and recipient, per RFC 8291 §3.3: HKDF-SHA256 with the recipient's auth
// secret as salt, the ECDH shared secret as input key material, and an info
// string binding both parties' raw public keys.
func webPushIKM(sharedSecret, authSecret, recipientPub, senderPub []byte) ([]byte, error) {
	info := make([]byte, 0, len("WebPush: info\x00")+len(recipientPub)+len(senderPub))
	info = append(info, []byte("WebPush: info\x00")...)
	info = append(info, recipientPub...)
	info = append(info, senderPub...)
	return hkdfExpand(sharedSecret, authSecret, info, 32)
}

func aes128gcmCEK(ikm, salt []byte) ([]byte, error) {
	return hkdfExpand(ikm, salt, []byte("Content-Encoding: aes128gcm\x00"), cekLength)
}

func aes128gcmNonce(ikm, salt []byte) ([]byte, error) {
	return hkdfExpand(ikm, salt, []byte("Content-Encoding: nonce\x00"), nonceLength)
}

// EncryptPayload encrypts plaintext to target's published public keys using
// the RFC 8188 aes128gcm content encoding: a fresh ephemeral ECDH keypair is
// generated per message, so compromise of one message's key material does
// not expose any other. The record header (salt, record size, sender's raw
// public key) is embedded in the output, matching how a Web Push payload
// carries everything the recipient needs to derive the same keys.
func EncryptPayload(target *PublicKeys, plaintext []byte) ([]byte, error) {
	senderPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral send-tab keypair: %w", err)
	}
	shared, err := senderPriv.ECDH(target.Pub)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}

	senderPub := senderPriv.PublicKey().Bytes()
	ikm, err := webPushIKM(shared, target.Auth, target.Pub.Bytes(), senderPub)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate record salt: %w", err)
	}
	cek, err := aes128gcmCEK(ikm, salt)
	if err != nil {
		return nil, err
	}
	nonce, err := aes128gcmNonce(ikm, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("failed to init AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}

	// Single-record payload: append the 0x02 last-record delimiter (RFC 8188 §2).
	padded := append(append([]byte(nil), plaintext...), 0x02)
	ciphertext := gcm.Seal(nil, nonce, padded, nil)

	header := make([]byte, 0, saltLength+4+1+len(senderPub))
	header = append(header, salt...)
	rs := make([]byte, 4)
	binary.BigEndian.PutUint32(rs, legacyRecordSize)
	header = append(header, rs...)
	header = append(header, byte(len(senderPub)))
	header = append(header, senderPub...)

	return append(header, ciphertext...), nil
}

// DecryptPayload reverses EncryptPayload using the recipient's private
// send-tab keys.
func DecryptPayload(own *PrivateKeys, data []byte) ([]byte, error) {
	if len(data) < saltLength+4+1 {
		return nil, fmt.Errorf("send-tab payload too short")
	}
	salt := data[:saltLength]
	pos := saltLength + 4 // skip record size field, fixed by construction
	keyIDLen := int(data[pos])
	pos++
	if pos+keyIDLen > len(data) {
		return nil, fmt.Errorf("send-tab payload header truncated")
	}
	senderPubBytes := data[pos : pos+keyIDLen]
	ciphertext := data[pos+keyIDLen:]

	senderPub, err := ecdh.P256().NewPublicKey(senderPubBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sender public key: %w", err)
	}
	shared, err := own.Priv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}

	ikm, err := webPushIKM(shared, own.Auth, own.Priv.PublicKey().Bytes(), senderPubBytes)
	if err != nil {
		return nil, err
	}
	cek, err := aes128gcmCEK(ikm, salt)
	if err != nil {
		return nil, err
	}
	nonce, err := aes128gcmNonce(ikm, salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("failed to init AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	padded, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt send-tab payload: %w", err)
	}
	if len(padded) == 0 || padded[len(padded)-1] != 0x02 {
		return nil, fmt.Errorf("send-tab payload missing record delimiter")
	}
	return padded[:len(padded)-1], nil
}

// DecryptLegacy decrypts the obsolete "aesgcm" content encoding, where the
// salt and sender ("dh") public key arrive out-of-band (e.g. push message
// headers) rather than embedded in the body, per §4.5.
func DecryptLegacy(own *PrivateKeys, ciphertext, salt, dh []byte) ([]byte, error) {
	senderPub, err := ecdh.P256().NewPublicKey(dh)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dh public key: %w", err)
	}
	shared, err := own.Priv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH failed: %w", err)
	}
	ikm, err := hkdfExpand(shared, own.Auth, []byte("Content-Encoding: auth\x00"), 32)
	if err != nil {
		return nil, err
	}
	cek, err := hkdfExpand(ikm, salt, []byte("Content-Encoding: aesgcm\x00"), cekLength)
	if err != nil {
		return nil, err
	}
	nonce, err := hkdfExpand(ikm, salt, []byte("Content-Encoding: nonce\x00"), nonceLength)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("failed to init AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	padded, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt legacy aesgcm payload: %w", err)
	}
	if len(padded) < 2 {
		return nil, fmt.Errorf("legacy payload too short")
	}
	// Legacy padding: a 2-byte big-endian pad length prefix followed by that
	// many zero pad bytes, then the plaintext.
	padLen := int(binary.BigEndian.Uint16(padded[:2]))
	if 2+padLen > len(padded) {
		return nil, fmt.Errorf("legacy payload padding length out of range")
	}
	return padded[2+padLen:], nil
}
