// Package payload implements the Hakanai payload envelope: the JSON
// structure that is serialised once, hashed, encrypted as a whole and never
// interpreted by the server.
package payload

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/teal-finance/hakanai/internal/crypto"
)

// DataType is an advisory UI hint. It is never trusted for security
// decisions — data_type only influences how a client renders the payload.
type DataType string

const (
	DataTypeText   DataType = "text"
	DataTypeImage  DataType = "image"
	DataTypeBinary DataType = "binary"
)

// MaxFilenameLength is the maximum accepted filename length, per the spec's
// filename sanitiser.
const MaxFilenameLength = 255

// Payload is the envelope carried inside the encrypted blob:
// {data, filename?, data_type?}. Data holds raw bytes; encoding/json encodes
// it as standard base64 automatically, matching the wire format.
type Payload struct {
	Data     []byte   `json:"data"`
	Filename string   `json:"filename,omitempty"`
	DataType DataType `json:"data_type,omitempty"`
}

// Zero wipes the payload's byte buffer. Call once the payload is no longer
// needed (after serialisation on send, after the caller consumes it on
// receive).
func (p *Payload) Zero() {
	for i := range p.Data {
		p.Data[i] = 0
	}
	p.Data = nil
}

// ErrEmptyFilename is returned by SanitizeFilename for an empty or
// all-stripped input.
var ErrEmptyFilename = errors.New("payload: filename is empty after sanitisation")

// SanitizeFilename enforces §4.2's rules: reject control characters, replace
// the reserved characters `<>:"/\|?*`, strip leading dots, clip to
// MaxFilenameLength, and reject an empty result.
func SanitizeFilename(name string) (string, error) {
	for _, r := range name {
		if r >= 0x00 && r <= 0x1f {
			return "", errors.New("payload: filename contains a control character")
		}
	}

	const reserved = `<>:"/\|?*`
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(reserved, r) {
			return '_'
		}
		return r
	}, name)

	name = strings.TrimLeft(name, ".")

	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}

	if name == "" {
		return "", ErrEmptyFilename
	}

	return name, nil
}

// Sniff classifies raw bytes as binary or text, used only to pick a default
// DataType when the caller did not supply one. A buffer is binary if its
// first 8 KiB sampled are not valid UTF-8, contain a NUL byte, or are more
// than 30% non-printable.
func Sniff(data []byte) DataType {
	if len(data) == 0 {
		return DataTypeText
	}

	sample := data
	const maxSample = 8192
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}

	if !utf8.Valid(sample) {
		return DataTypeBinary
	}

	nonPrintable := 0
	total := 0
	for _, r := range string(sample) {
		total++
		if r == 0 {
			return DataTypeBinary
		}
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
	}

	if total > 0 && float64(nonPrintable)/float64(total) > 0.3 {
		return DataTypeBinary
	}

	return DataTypeText
}

// New builds a text payload with no filename.
func New(data []byte) Payload {
	return Payload{Data: data, DataType: Sniff(data)}
}

// NewFile builds a payload for a single file, sanitising its filename.
func NewFile(data []byte, filename string) (Payload, error) {
	clean, err := SanitizeFilename(filename)
	if err != nil {
		return Payload{}, err
	}

	return Payload{Data: data, Filename: clean, DataType: Sniff(data)}, nil
}

// HashHex computes the truncated integrity hash over the payload's
// serialised JSON bytes — callers must pass the exact bytes that will be
// encrypted, not the Payload struct itself.
func HashHex(serialized []byte) string {
	return crypto.TruncatedHashHex(serialized)
}
