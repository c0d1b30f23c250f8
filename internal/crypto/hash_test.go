package crypto_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/teal-finance/hakanai/internal/crypto"
)

func TestTruncatedHashHexMatchesSHA256Prefix(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	full := sha256.Sum256(data)
	want := hex.EncodeToString(full[:16])

	got := crypto.TruncatedHashHex(data)
	if got != want {
		t.Fatalf("TruncatedHashHex = %q, want %q", got, want)
	}
	if len(got) != 32 {
		t.Fatalf("len(TruncatedHashHex) = %d, want 32", len(got))
	}
}

func TestHashMismatchOnAnyByteChange(t *testing.T) {
	original := []byte(`{"data":"aGVsbG8="}`)
	tampered := append([]byte{}, original...)
	tampered[5] ^= 0x01

	if crypto.TruncatedHashHex(original) == crypto.TruncatedHashHex(tampered) {
		t.Fatal("hash did not change after tampering a single byte")
	}
}
