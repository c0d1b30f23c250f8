package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSize is the full SHA-256 digest length in bytes.
const HashSize = sha256.Size

// TruncatedHashSize is the number of leading bytes of the SHA-256 digest
// carried in the share URL, i.e. 128 bits.
const TruncatedHashSize = 16

// HashPayload returns the SHA-256 digest of the serialised plaintext
// payload, used as the basis of the share URL's integrity hash.
func HashPayload(plaintext []byte) [HashSize]byte {
	return sha256.Sum256(plaintext)
}

// TruncatedHashHex returns the first 128 bits of SHA-256(plaintext) as 32
// lowercase hex characters, short enough to fit a URL fragment and a QR code.
func TruncatedHashHex(plaintext []byte) string {
	sum := HashPayload(plaintext)
	return hex.EncodeToString(sum[:TruncatedHashSize])
}
