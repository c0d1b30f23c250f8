// Package restriction evaluates the per-secret admission rules attached at
// creation time: source IP, country, ASN, and passphrase, each independent
// and each carrying its own error code so a client knows exactly which gate
// it failed.
package restriction

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/netip"
	"time"

	"github.com/teal-finance/hakanai/internal/protocol"
)

// MaxPassphraseAttempts bounds how many times a wrong passphrase may be
// tried before the secret is destroyed outright, to stop an attacker from
// grinding it down with unlimited guesses.
const MaxPassphraseAttempts = 5

// Restrictions is the evaluated, typed form of the opaque set stored
// alongside a secret. AllowedIPs is pre-parsed to netip.Prefix so every
// evaluation avoids re-parsing CIDR strings on the hot path.
type Restrictions struct {
	AllowedIPs       []netip.Prefix
	AllowedCountries []string
	AllowedASNs      []uint32
	PassphraseHash   string
}

// Request carries everything the evaluator needs to know about the
// incoming retrieval attempt. Country and ASN come from the caller's GeoIP
// lookup (out of scope for this package); a zero ASN means "unknown".
type Request struct {
	IP         netip.Addr
	Country    string
	ASN        uint32
	Passphrase string
}

// Verdict is the result of one Evaluate call.
type Verdict struct {
	Allowed bool
	Code    protocol.Code

	// Destroy is set when the caller must delete the secret regardless of
	// TTL, e.g. after exhausting passphrase attempts.
	Destroy bool
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func deny(code protocol.Code) Verdict {
	return Verdict{Allowed: false, Code: code}
}

// Evaluate runs the ordered admission chain: IP, then country, then ASN,
// then passphrase. The first failing rule wins; a Restrictions with no
// rules set always allows.
//
// attemptsAfterThisTry is the passphrase-attempt count including this try
// (e.g. as returned by store.AttemptCounter.IncrementAttempt); Evaluate
// itself never touches storage.
func Evaluate(r Restrictions, req Request, attemptsAfterThisTry int64) Verdict {
	if len(r.AllowedIPs) > 0 && !ipAllowed(r.AllowedIPs, req.IP) {
		return deny(protocol.CodeForbiddenIP)
	}

	if len(r.AllowedCountries) > 0 && !stringIn(r.AllowedCountries, req.Country) {
		return deny(protocol.CodeForbiddenGeo)
	}

	if len(r.AllowedASNs) > 0 && !asnIn(r.AllowedASNs, req.ASN) {
		return deny(protocol.CodeForbiddenASN)
	}

	if r.PassphraseHash != "" {
		if !passphraseMatches(r.PassphraseHash, req.Passphrase) {
			v := deny(protocol.CodeForbiddenPassphrase)
			if attemptsAfterThisTry >= MaxPassphraseAttempts {
				v.Destroy = true
			}
			return v
		}
	}

	return allow()
}

func ipAllowed(prefixes []netip.Prefix, ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}
	for _, p := range prefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func stringIn(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func asnIn(list []uint32, v uint32) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// HashPassphrase derives the at-rest form of a passphrase restriction; the
// raw passphrase is never stored.
func HashPassphrase(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func passphraseMatches(hash, raw string) bool {
	if raw == "" {
		return false
	}
	got := HashPassphrase(raw)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// PassphraseHashMatches compares two already-hashed passphrase values in
// constant time. It exists for callers whose transport only ever carries
// the hashed form (the HTTP retrieval path hashes the passphrase
// client-side before sending it), so Evaluate's raw-passphrase path above
// is not the right fit: re-hashing an already-hashed value would never
// match what was stored.
func PassphraseHashMatches(storedHash, candidateHash string) bool {
	if candidateHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidateHash), []byte(storedHash)) == 1
}

// TrustedIPs answers whether a given address falls within an operator's
// configured trusted ranges, used to decide whether an X-Forwarded-For (or
// similar) header may be trusted to extract the real client IP.
type TrustedIPs struct {
	Prefixes []netip.Prefix
}

func (t TrustedIPs) Contains(ip netip.Addr) bool {
	return ipAllowed(t.Prefixes, ip)
}

// AttemptCounter is the subset of store.AttemptCounter the admission path
// needs, kept here to avoid restriction depending on the store package's
// concrete types.
type AttemptCounter interface {
	IncrementAttempt(ctx context.Context, id string, ttl time.Duration) (int64, error)
}
