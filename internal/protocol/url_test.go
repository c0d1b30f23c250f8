package protocol_test

import (
	"strings"
	"testing"

	"github.com/teal-finance/hakanai/internal/protocol"
)

func TestShareURLFormatAndParseRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	s := protocol.ShareURL{ID: "0b6e1f1a-1234-4a2b-8c3d-abcdefabcdef", Key: key, Hash: "00112233445566778899aabbccddeeff"[:32]}

	url := s.Format("https://hakanai.example")
	if !strings.HasPrefix(url, "https://hakanai.example/s/"+s.ID+"#") {
		t.Fatalf("unexpected URL shape: %s", url)
	}

	got, err := protocol.ParseShareURL(url)
	if err != nil {
		t.Fatalf("ParseShareURL: %v", err)
	}

	if got.ID != s.ID {
		t.Errorf("ID = %q, want %q", got.ID, s.ID)
	}
	if string(got.Key) != string(s.Key) {
		t.Errorf("Key mismatch")
	}
	if got.Hash != s.Hash {
		t.Errorf("Hash = %q, want %q", got.Hash, s.Hash)
	}
}

func TestParseShareURLLegacyNoHash(t *testing.T) {
	key := make([]byte, 32)
	s := protocol.ShareURL{ID: "abc", Key: key}
	url := s.Format("https://h")

	got, err := protocol.ParseShareURL(url)
	if err != nil {
		t.Fatalf("ParseShareURL: %v", err)
	}
	if got.Hash != "" {
		t.Errorf("Hash = %q, want empty", got.Hash)
	}
}

func TestParseShareURLAcceptsSecretPath(t *testing.T) {
	key := make([]byte, 32)
	url := (protocol.ShareURL{ID: "abc", Key: key}).Format("https://h")
	url = strings.Replace(url, "/s/", "/secret/", 1)

	got, err := protocol.ParseShareURL(url)
	if err != nil {
		t.Fatalf("ParseShareURL: %v", err)
	}
	if got.ID != "abc" {
		t.Errorf("ID = %q, want abc", got.ID)
	}
}

func TestParseShareURLMissingKey(t *testing.T) {
	_, err := protocol.ParseShareURL("https://h/s/abc")
	perr, ok := err.(*protocol.Error)
	if !ok || perr.Code != protocol.CodeMissingDecryptionKey {
		t.Fatalf("err = %v, want CodeMissingDecryptionKey", err)
	}
}

func TestParseShareURLInvalidPath(t *testing.T) {
	_, err := protocol.ParseShareURL("https://h/nope#key")
	perr, ok := err.(*protocol.Error)
	if !ok || perr.Code != protocol.CodeInvalidURL {
		t.Fatalf("err = %v, want CodeInvalidURL", err)
	}
}
