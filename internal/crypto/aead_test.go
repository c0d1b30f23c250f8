package crypto_test

import (
	"bytes"
	"testing"

	"github.com/teal-finance/hakanai/internal/crypto"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, 1<<20),
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	defer key.Zero()

	for _, plaintext := range cases {
		ciphertext, err := crypto.Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}

		got, err := crypto.Decrypt(ciphertext, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		defer got.Zero()

		if !bytes.Equal(got.Bytes(), plaintext) {
			t.Fatalf("round-trip mismatch: got %q want %q", got.Bytes(), plaintext)
		}
	}
}

func TestEncryptNonceUniqueness(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	defer key.Zero()

	plaintext := []byte("the same message, twice")

	a, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	b, err := crypto.Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if a == b {
		t.Fatal("two encryptions of the same plaintext under the same key produced identical ciphertext")
	}
}

func TestDecryptFailures(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	defer key.Zero()

	ciphertext, err := crypto.Encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	otherKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	defer otherKey.Zero()

	t.Run("wrong key", func(t *testing.T) {
		if _, err := crypto.Decrypt(ciphertext, otherKey); err != crypto.ErrDecryptFailed {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("bad base64", func(t *testing.T) {
		if _, err := crypto.Decrypt("not base64!!", key); err != crypto.ErrDecryptFailed {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := crypto.Decrypt("YQ==", key); err != crypto.ErrDecryptFailed {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("wrong key size", func(t *testing.T) {
		short := crypto.NewBytes(make([]byte, 16))
		if _, err := crypto.Decrypt(ciphertext, short); err != crypto.ErrDecryptFailed {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})

	t.Run("tampered byte", func(t *testing.T) {
		tampered := []byte(ciphertext)
		tampered[len(tampered)-1] ^= 0x01
		if _, err := crypto.Decrypt(string(tampered), key); err != crypto.ErrDecryptFailed {
			t.Fatalf("got %v, want ErrDecryptFailed", err)
		}
	})
}

func TestZeroClearsBuffer(t *testing.T) {
	b := crypto.NewBytes([]byte{1, 2, 3, 4})
	b.Zero()

	if b.Len() != 0 {
		t.Fatalf("Len() after Zero() = %d, want 0", b.Len())
	}
}
