package protocol

import (
	"encoding/base64"
	"strings"
)

// ShareURL is the decoded form of a share link:
// {origin}/s/{id}#{key}:{hash}, hash being optional on legacy links.
type ShareURL struct {
	ID   string
	Key  []byte // 32 raw bytes
	Hash string // 32 lowercase hex chars, empty if the link carries none
}

// Format renders the canonical share URL against origin (e.g. "https://host").
func (s ShareURL) Format(origin string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(origin, "/"))
	b.WriteString("/s/")
	b.WriteString(s.ID)
	b.WriteString("#")
	b.WriteString(base64.RawURLEncoding.EncodeToString(s.Key))
	if s.Hash != "" {
		b.WriteString(":")
		b.WriteString(s.Hash)
	}
	return b.String()
}

// ParseShareURL accepts "/s/{id}" or "/secret/{id}" paths (with or without a
// scheme/host prefix) and a fragment of "key" or "key:hash".
func ParseShareURL(raw string) (ShareURL, error) {
	path, fragment, hasFragment := cutFragment(raw)

	id, ok := extractID(path)
	if !ok {
		return ShareURL{}, newErr(CodeInvalidURL, "unrecognised share path")
	}

	if !hasFragment || fragment == "" {
		return ShareURL{}, newErr(CodeMissingDecryptionKey, "URL fragment is missing the decryption key")
	}

	keyPart, hash := fragment, ""
	if i := strings.IndexByte(fragment, ':'); i >= 0 {
		keyPart, hash = fragment[:i], fragment[i+1:]
	}

	key, err := base64.RawURLEncoding.DecodeString(keyPart)
	if err != nil {
		return ShareURL{}, newErr(CodeInvalidKey, "key is not valid URL-safe base64")
	}

	return ShareURL{ID: id, Key: key, Hash: strings.ToLower(hash)}, nil
}

func cutFragment(raw string) (path, fragment string, has bool) {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i], raw[i+1:], true
	}
	return raw, "", false
}

// extractID finds the path segment following "/s/" or "/secret/", stripping
// any scheme/host prefix and trailing slash.
func extractID(path string) (string, bool) {
	for _, marker := range []string{"/s/", "/secret/"} {
		if i := strings.Index(path, marker); i >= 0 {
			rest := path[i+len(marker):]
			rest = strings.TrimRight(rest, "/")
			if rest == "" || strings.ContainsAny(rest, "/?") {
				continue
			}
			return rest, true
		}
	}
	return "", false
}
