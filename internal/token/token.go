// Package token implements bearer-token authentication: admin and user
// tokens are hashed with SHA-256 before ever touching storage, and
// authentication compares hashes in constant time.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes the admin bootstrap token from ordinary user tokens
// minted by it. Only Admin may mint new User tokens.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindUser  Kind = "user"
)

// Record is what gets persisted per token, keyed by its hash.
type Record struct {
	Kind        Kind      `json:"kind"`
	UploadLimit int64     `json:"upload_limit"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the record's lifetime has elapsed. A zero
// ExpiresAt means the token never expires (used for the admin bootstrap
// token).
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// ErrInvalidToken is returned by Authenticate for any bearer value that does
// not map to a live, unexpired Record. The caller must not distinguish
// "unknown" from "expired" in its response, to avoid leaking which.
var ErrInvalidToken = errors.New("token: invalid or expired token")

// Store is the persistence contract token needs; NewKVStore adapts an
// internal/store KVStore to it by storing Record as JSON under hashed keys.
type Store interface {
	Put(ctx context.Context, hash string, rec Record, ttl time.Duration) error
	Get(ctx context.Context, hash string) (Record, error)
	Delete(ctx context.Context, hash string) error
}

// Hash returns the lowercase hex SHA-256 of a raw bearer token. Tokens are
// never stored or logged in raw form, only this hash.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate returns a fresh, URL-safe random bearer token of sufficient
// entropy to be used directly in an Authorization header.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: generate: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Authorizer authenticates bearer tokens and mints new user tokens.
type Authorizer struct {
	store Store

	// AnonymousUploadLimit bounds payload size for requests carrying no
	// bearer token at all; zero disables anonymous access entirely.
	AnonymousUploadLimit int64
}

// NewAuthorizer wires an Authorizer to its backing Store.
func NewAuthorizer(store Store, anonymousUploadLimit int64) *Authorizer {
	return &Authorizer{store: store, AnonymousUploadLimit: anonymousUploadLimit}
}

// Authenticate fetches the Record stored under the hash of raw and returns
// it if it has not expired. An empty raw is never valid here;
// callers wanting anonymous-mode semantics should check for an empty bearer
// before calling Authenticate and fall back to AnonymousUploadLimit.
func (a *Authorizer) Authenticate(ctx context.Context, raw string) (Record, error) {
	if raw == "" {
		return Record{}, ErrInvalidToken
	}

	hash := Hash(raw)
	rec, err := a.store.Get(ctx, hash)
	if err != nil {
		return Record{}, ErrInvalidToken
	}

	// The store lookup above is a keyed fetch (no scan over all tokens).
	// Record holds no copy of the hash, so this comparison checks hash
	// against a fresh Hash(raw) and always matches; it does not detect a
	// backend that returns a record stored under a different key.
	if subtle.ConstantTimeCompare([]byte(hash), []byte(Hash(raw))) != 1 {
		return Record{}, ErrInvalidToken
	}

	if rec.Expired(now()) {
		return Record{}, ErrInvalidToken
	}

	return rec, nil
}

// MintUserToken creates and persists a new user token, returning the raw
// value to hand back to the caller exactly once; only its hash is kept.
func (a *Authorizer) MintUserToken(ctx context.Context, uploadLimit int64, ttl time.Duration) (string, error) {
	raw, err := Generate()
	if err != nil {
		return "", err
	}

	rec := Record{Kind: KindUser, UploadLimit: uploadLimit}
	if ttl > 0 {
		rec.ExpiresAt = now().Add(ttl)
	}

	if err := a.store.Put(ctx, Hash(raw), rec, ttl); err != nil {
		return "", fmt.Errorf("token: mint: %w", err)
	}

	return raw, nil
}

// Bootstrap installs a fixed admin token at startup (e.g. from an
// environment variable), never expiring and never persisted with a TTL.
func (a *Authorizer) Bootstrap(ctx context.Context, raw string, uploadLimit int64) error {
	if raw == "" {
		return errors.New("token: bootstrap admin token must not be empty")
	}
	rec := Record{Kind: KindAdmin, UploadLimit: uploadLimit}
	return a.store.Put(ctx, Hash(raw), rec, 0)
}

// Revoke removes a token immediately, independent of its TTL.
func (a *Authorizer) Revoke(ctx context.Context, raw string) error {
	return a.store.Delete(ctx, Hash(raw))
}

// now is overridable in tests that need to exercise expiry without sleeping.
var now = time.Now
