// Package httpapi wires the HTTP surface described by the client protocol:
// creating and retrieving secrets, minting user tokens, and the small set
// of operational endpoints (readiness, health, public config). Routing
// uses go-chi/chi, middleware composition uses the teacher's chain.Chain.
package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teal-finance/hakanai/chain"
	"github.com/teal-finance/hakanai/cors"
	"github.com/teal-finance/hakanai/internal/notifier"
	"github.com/teal-finance/hakanai/internal/restriction"
	"github.com/teal-finance/hakanai/internal/store"
	"github.com/teal-finance/hakanai/internal/token"
	"github.com/teal-finance/hakanai/metrics"
	"github.com/teal-finance/hakanai/reqlog"
	"github.com/teal-finance/hakanai/reserr"
	"github.com/teal-finance/hakanai/security"
)

// Server holds every dependency the handlers need. It has no state of its
// own beyond these references, mirroring the teacher's pattern of a plain
// struct of collaborators wired once at startup.
type Server struct {
	Store       store.SecretStore
	Attempts    store.AttemptCounter
	Authorizer  *token.Authorizer
	Notifier    notifier.Notifier
	Metrics     *metrics.Metrics
	Domain      *metrics.Domain
	AdminPolicy restriction.AdminPolicy

	MaxTTL          time.Duration
	TrustedProxies  restriction.TrustedIPs
	TrustedIPHeader string

	// CountryHeader and ASNHeader name the request headers a trusted
	// reverse proxy or GeoIP module populates with the caller's ISO
	// 3166-1 country code and ASN, respectively. Empty means
	// "unconfigured": a secret carrying an allowed_countries/allowed_asns
	// restriction can then never be evaluated, so retrieval replies
	// 501 NOT_IMPLEMENTED instead of silently denying or allowing.
	CountryHeader string
	ASNHeader     string

	// AdminAPIEnabled gates POST /api/v1/admin/tokens entirely; the route
	// still matches when false (so the caller gets a clear NOT_IMPLEMENTED
	// instead of a generic 404) but never reaches the admin-token check.
	AdminAPIEnabled bool

	ResErr reserr.ResErr
}

// Router builds the full middleware-wrapped chi.Router: metrics → request
// log → URI sanitisation → CORS → routes, exactly the order SPEC_FULL.md
// lays out. Callers start the Prometheus export listener themselves via
// s.Metrics.StartServer on a private port.
func (s *Server) Router(corsOrigins []string, devMode bool) http.Handler {
	base := chain.New(s.Metrics.Middleware(), reqlog.LogRequests, security.RejectInvalidURI)
	if len(corsOrigins) > 0 {
		base = base.Append(cors.Handler(corsOrigins, devMode))
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.With(toMiddlewares(base)...).Post("/secret", s.handleCreateSecret)
		r.With(toMiddlewares(base)...).Get("/secret/{id}", s.handleRetrieveSecret)

		r.Group(func(r chi.Router) {
			mw := base
			if s.AdminPolicy.Enabled() {
				mw = mw.Append(s.adminPolicyGate)
			}
			r.With(toMiddlewares(mw)...).Post("/admin/tokens", s.handleMintToken)
		})
	})

	r.With(toMiddlewares(base)...).Get("/ready", s.handleReady)
	r.With(toMiddlewares(base)...).Get("/healthy", s.handleHealthy)
	r.With(toMiddlewares(base)...).Get("/config.json", s.handleConfig)

	return r
}

func toMiddlewares(c chain.Chain) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, len(c))
	for i, mw := range c {
		out[i] = mw
	}
	return out
}

// adminPolicyGate runs the optional Rego-based check in front of the admin
// token-mint endpoint, on top of (never instead of) the mandatory
// admin-token and trusted-proxy checks performed inside handleMintToken.
func (s *Server) adminPolicyGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allow, err := s.AdminPolicy.Allow(r.Context(), r)
		if err != nil {
			s.ResErr.Write(w, r, http.StatusInternalServerError, "policy evaluation failed")
			return
		}
		if !allow {
			s.ResErr.Write(w, r, http.StatusForbidden, "denied by admin policy")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's address, honouring the configured trusted
// header only when the immediate peer (RemoteAddr) is itself inside a
// trusted proxy range; otherwise RemoteAddr is authoritative.
func (s *Server) clientIP(r *http.Request) netip.Addr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}

	if s.TrustedProxies.Contains(peer) {
		if fwd := r.Header.Get(s.TrustedIPHeader); fwd != "" {
			if addr, err := netip.ParseAddr(firstForwardedAddr(fwd)); err == nil {
				return addr
			}
		}
	}

	return peer
}

// firstForwardedAddr returns the first, left-most address in a
// comma-separated X-Forwarded-For value (the original client), trimmed of
// any port and whitespace.
func firstForwardedAddr(header string) string {
	first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
	if host, _, err := net.SplitHostPort(first); err == nil {
		return host
	}
	return first
}
