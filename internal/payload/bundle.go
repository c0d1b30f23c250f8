package payload

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
)

// InputFile is one file to be bundled into a multi-file secret.
type InputFile struct {
	Name string // basename only; any directory component is discarded
	Data []byte
}

// Bundle packs files into a single stored (non-deflated) ZIP archive and
// wraps it in a Payload whose Filename is the caller-supplied archive name.
//
// ZIP was chosen over the teacher's generic stream compressors
// (brotli/gzip/s2/zstd, see gg/compress.go) because the spec requires a
// container format with independently addressable named entries, not a
// single compressed stream; archive/zip is the stdlib's only container
// format and is used here for that structural reason, not as a compression
// algorithm choice. Entries are stored (zip.Store), not deflated: both
// clients must agree on exactly one choice (spec §9 open question) and
// Store keeps the browser-side implementation trivial to keep in parity
// with this one.
func Bundle(files []InputFile, archiveName string) (Payload, error) {
	if len(files) == 0 {
		return Payload{}, fmt.Errorf("payload: Bundle requires at least one file")
	}

	name, err := SanitizeFilename(archiveName)
	if err != nil {
		return Payload{}, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		base := filepath.Base(f.Name)

		header := &zip.FileHeader{
			Name:   base,
			Method: zip.Store,
		}

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return Payload{}, fmt.Errorf("payload: zip entry %q: %w", base, err)
		}

		if _, err := entry.Write(f.Data); err != nil {
			return Payload{}, fmt.Errorf("payload: zip write %q: %w", base, err)
		}
	}

	if err := zw.Close(); err != nil {
		return Payload{}, fmt.Errorf("payload: zip close: %w", err)
	}

	return Payload{
		Data:     buf.Bytes(),
		Filename: name,
	}, nil
}

// ArchiveName builds the generated bundle filename "secrets-{unixSeconds}.zip".
// The timestamp is passed in rather than read from the clock so Bundle stays
// pure and easy to test deterministically.
func ArchiveName(unixSeconds int64) string {
	return fmt.Sprintf("secrets-%d.zip", unixSeconds)
}
