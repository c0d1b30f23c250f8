// Package config loads hakanai-server's configuration from the
// environment into a single flat Config struct. Optional pieces (metrics
// port, pprof port, admin policy) are plain fields with defaults; there are
// no functional options.
package config

import (
	"fmt"
	"log"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teal-finance/hakanai/timex"
)

// Config is hakanai-server's fully resolved configuration.
type Config struct {
	// ListenAddr is the public API/webui listen address, e.g. ":8080".
	ListenAddr string

	// RedisAddr is the backing store address, e.g. "localhost:6379".
	RedisAddr string
	RedisDB   int

	// AdminToken bootstraps the first admin bearer token at startup.
	AdminToken string

	// AnonymousUploadLimit bounds payload size for unauthenticated requests;
	// zero disables anonymous access.
	AnonymousUploadLimit int64

	// MaxTTL bounds how far in the future ExpiresIn may be set (§6).
	MaxTTL time.Duration

	// TrustedProxies lists CIDR ranges allowed to set the trusted-IP header;
	// required (non-empty) whenever AdminAPIEnabled is true.
	TrustedProxies []netip.Prefix

	// TrustedIPHeader names the header holding the real client IP behind a
	// trusted proxy, default "X-Forwarded-For".
	TrustedIPHeader string

	// CountryHeader and ASNHeader name the headers a trusted reverse proxy
	// or GeoIP module populates with the caller's country/ASN. Empty (the
	// default) means unconfigured: a restriction naming either dimension
	// then gets a 501 NOT_IMPLEMENTED instead of a silent allow or deny.
	CountryHeader string
	ASNHeader     string

	AdminAPIEnabled bool

	// CORSAllowedOrigins, empty disables CORS entirely.
	CORSAllowedOrigins []string

	// MetricsPort, zero disables the Prometheus export server.
	MetricsPort int

	// PprofPort, zero disables net/http/pprof exposure.
	PprofPort int

	// WebhookURL and WebhookToken configure the notification hook; an empty
	// WebhookURL falls back to the FakeNotifier.
	WebhookURL   string
	WebhookToken string

	// AdminPolicyFiles are optional Rego modules gating the admin endpoint
	// on top of the mandatory admin-token + trusted-IP check.
	AdminPolicyFiles []string

	DevMode bool
}

// Load reads Config from the process environment, applying the same
// defaults a developer running the teacher's examples would expect, and
// calling log.Fatal on configuration that can never be made safe at
// runtime (malformed CIDR, or an admin API enabled with no trusted proxy
// range to gate it), per §6's exit-on-invalid-config behaviour.
func Load() Config {
	c := Config{
		ListenAddr:           getEnv("HAKANAI_LISTEN_ADDR", ":8080"),
		RedisAddr:            getEnv("HAKANAI_REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("HAKANAI_REDIS_DB", 0),
		AdminToken:           os.Getenv("HAKANAI_ADMIN_TOKEN"),
		AnonymousUploadLimit: getEnvInt64("HAKANAI_ANONYMOUS_UPLOAD_LIMIT", 1<<20),
		MaxTTL:               getEnvDuration("HAKANAI_MAX_TTL", 7*24*time.Hour),
		TrustedIPHeader:      getEnv("HAKANAI_TRUSTED_IP_HEADER", "X-Forwarded-For"),
		CountryHeader:        getEnv("HAKANAI_COUNTRY_HEADER", ""),
		ASNHeader:            getEnv("HAKANAI_ASN_HEADER", ""),
		AdminAPIEnabled:      getEnvBool("HAKANAI_ADMIN_API_ENABLED", false),
		MetricsPort:          getEnvInt("HAKANAI_METRICS_PORT", 0),
		PprofPort:            getEnvInt("HAKANAI_PPROF_PORT", 0),
		WebhookURL:           os.Getenv("HAKANAI_WEBHOOK_URL"),
		WebhookToken:         os.Getenv("HAKANAI_WEBHOOK_TOKEN"),
		DevMode:              getEnvBool("HAKANAI_DEV_MODE", false),
	}

	if v := os.Getenv("HAKANAI_CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("HAKANAI_ADMIN_POLICY_FILES"); v != "" {
		c.AdminPolicyFiles = splitAndTrim(v)
	}

	prefixes, err := parsePrefixes(os.Getenv("HAKANAI_TRUSTED_PROXIES"))
	if err != nil {
		log.Fatalf("config: HAKANAI_TRUSTED_PROXIES: %v", err)
	}
	c.TrustedProxies = prefixes

	if c.AdminAPIEnabled && len(c.TrustedProxies) == 0 {
		log.Fatal("config: HAKANAI_ADMIN_API_ENABLED=true requires at least one HAKANAI_TRUSTED_PROXIES entry")
	}

	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("config: %s must be an integer, got %q", key, v)
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("config: %s must be an integer, got %q", key, v)
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("config: %s must be a boolean, got %q", key, v)
	}
	return b
}

// getEnvDuration accepts timex's extended unit set (d, w, mo, y on top of
// the stdlib units), since operators naturally express a max TTL in days.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := timex.ParseDuration(v)
	if err != nil {
		log.Fatalf("config: %s must be a duration (e.g. \"7d\"), got %q", key, v)
	}
	return d
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePrefixes(v string) ([]netip.Prefix, error) {
	if v == "" {
		return nil, nil
	}
	parts := splitAndTrim(v)
	out := make([]netip.Prefix, 0, len(parts))
	for _, p := range parts {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", p, err)
		}
		out = append(out, prefix)
	}
	return out, nil
}
