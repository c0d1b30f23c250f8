// Package crypto implements the symmetric AEAD primitives shared by the
// server, the CLI and (logically) the browser client: key generation,
// AES-256-GCM encryption/decryption and the truncated integrity hash carried
// in the share URL fragment.
//
// This package has been adapted from Teal.Finance/Garcon's aead package
// (see https://go.dev/blog/tls-cipher-suites and
// https://github.com/gtank/cryptopasta for the same lineage), generalised
// from a reused-nonce AES-128 sketch to AES-256-GCM with a fresh nonce drawn
// on every Encrypt call, as required for bit-for-bit interop between the two
// clients and the server.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

const (
	// KeySize is the length in bytes of an AES-256-GCM key.
	KeySize = 32
	// NonceSize is the length in bytes of the GCM nonce prefixed to every ciphertext.
	NonceSize = 12
)

// ErrDecryptFailed is returned for every decryption failure: short input,
// malformed base64, wrong key size, or GCM authentication failure. The
// external error never distinguishes among these causes (spec requirement).
var ErrDecryptFailed = errors.New("crypto: decryption failed")

// GenerateKey draws a fresh 256-bit key from the system CSPRNG.
func GenerateKey() (Bytes, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return Bytes{}, err
	}
	return NewBytes(key), nil
}

// Encrypt frames a fresh 12-byte nonce, the AES-256-GCM ciphertext and its
// 128-bit tag as nonce||ciphertext||tag, then returns the standard base64
// encoding of that frame. A new nonce is drawn on every call so the same
// (key, nonce) pair is never reused.
func Encrypt(plaintext []byte, key Bytes) (string, error) {
	gcm, err := newGCM(key.Bytes())
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any failure — malformed base64, a frame shorter
// than nonce+tag, a key that isn't 32 bytes, or a GCM authentication
// mismatch — collapses to ErrDecryptFailed.
func Decrypt(ciphertextB64 string, key Bytes) (Bytes, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return Bytes{}, ErrDecryptFailed
	}

	gcm, err := newGCM(key.Bytes())
	if err != nil {
		return Bytes{}, ErrDecryptFailed
	}

	if len(raw) < NonceSize+gcm.Overhead() {
		return Bytes{}, ErrDecryptFailed
	}

	nonce, sealed := raw[:NonceSize], raw[NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Bytes{}, ErrDecryptFailed
	}

	return NewBytes(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrDecryptFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}
