package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/teal-finance/hakanai/internal/notifier"
	"github.com/teal-finance/hakanai/internal/protocol"
	"github.com/teal-finance/hakanai/internal/restriction"
	"github.com/teal-finance/hakanai/internal/store"
	"github.com/teal-finance/hakanai/internal/token"
)

// maxBodyBytes bounds how much of the request body is ever read before the
// upload-limit check below runs, so a client cannot force unbounded memory
// use by lying about Content-Length.
const maxBodyBytes = 64 << 20

type createRequest struct {
	Data         string                `json:"data"`
	ExpiresIn    int64                 `json:"expires_in"`
	Restrictions *protocol.Restrictions `json:"restrictions,omitempty"`
}

type createResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	uploadLimit, createdBy, ok := s.authenticateUpload(r)
	if !ok {
		s.writeErr(w, r, http.StatusUnauthorized, protocol.CodeAuthenticationRequired, "bearer token required")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeErr(w, r, http.StatusBadRequest, protocol.CodeBadRequest, "cannot read body")
		return
	}

	if int64(len(body)) > uploadLimit {
		s.writeErr(w, r, http.StatusRequestEntityTooLarge, protocol.CodePayloadTooLarge, "payload exceeds upload limit")
		return
	}

	var req createRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeErr(w, r, http.StatusBadRequest, protocol.CodeBadRequest, "malformed JSON body")
		return
	}
	if req.Data == "" {
		s.writeErr(w, r, http.StatusBadRequest, protocol.CodeBadRequest, "data must not be empty")
		return
	}

	ttl := time.Duration(req.ExpiresIn) * time.Second
	if ttl <= 0 {
		s.writeErr(w, r, http.StatusBadRequest, protocol.CodeBadRequest, "expires_in must be positive")
		return
	}
	if s.MaxTTL > 0 && ttl > s.MaxTTL {
		s.writeErr(w, r, http.StatusBadRequest, protocol.CodeTTLExceedsMax, "expires_in exceeds the maximum allowed TTL")
		return
	}

	id := uuid.NewString()
	rec := store.Record{
		Ciphertext: req.Data,
		CreatedBy:  createdBy,
	}
	if req.Restrictions != nil {
		for _, cidr := range req.Restrictions.AllowedIPs {
			if _, err := parseIPOrPrefix(cidr); err != nil {
				s.writeErr(w, r, http.StatusBadRequest, protocol.CodeBadRequest, "allowed_ips entry is not a valid address or CIDR")
				return
			}
		}
		rec.Restrictions = &store.Restrictions{
			AllowedIPs:       req.Restrictions.AllowedIPs,
			AllowedCountries: req.Restrictions.AllowedCountries,
			AllowedASNs:      req.Restrictions.AllowedASNs,
			PassphraseHash:   req.Restrictions.PassphraseHash,
		}
	}

	if err := s.Store.Put(r.Context(), id, rec, ttl); err != nil {
		s.writeErr(w, r, http.StatusServiceUnavailable, protocol.CodeStoreUnavailable, "secret store unavailable")
		return
	}

	if s.Domain != nil {
		s.Domain.SecretsCreated.WithLabelValues(callerLabel(createdBy)).Inc()
	}
	if s.Notifier != nil {
		_ = s.Notifier.Notify(r.Context(), notifier.Payload{
			Event:     notifier.EventCreated,
			ID:        id,
			Timestamp: time.Now().Unix(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createResponse{ID: id})
}

// authenticateUpload resolves the caller's upload limit: a valid bearer
// token yields its configured limit, an absent token falls back to the
// anonymous limit (rejecting the request if that limit is zero), and an
// invalid token is always rejected outright.
func (s *Server) authenticateUpload(r *http.Request) (limit int64, createdBy string, ok bool) {
	bearer := bearerToken(r)
	if bearer == "" {
		if s.Authorizer.AnonymousUploadLimit <= 0 {
			return 0, "", false
		}
		return s.Authorizer.AnonymousUploadLimit, "anonymous", true
	}

	rec, err := s.Authorizer.Authenticate(r.Context(), bearer)
	if err != nil {
		return 0, "", false
	}
	return rec.UploadLimit, string(rec.Kind), true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return ""
}

func callerLabel(createdBy string) string {
	if createdBy == "anonymous" {
		return "anonymous"
	}
	return "authenticated"
}

func (s *Server) handleRetrieveSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	restr, err := s.Store.PeekRestrictions(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.writeErr(w, r, http.StatusServiceUnavailable, protocol.CodeStoreUnavailable, "secret store unavailable")
		return
	}

	if restr != nil {
		verdict := s.evaluateRestrictions(r, id, restr)
		if verdict.Destroy {
			_ = s.Store.Delete(r.Context(), id)
		}
		if !verdict.Allowed {
			if s.Domain != nil {
				s.Domain.RestrictionDenied.WithLabelValues(string(verdict.Code)).Inc()
			}
			status := http.StatusForbidden
			if verdict.Code == protocol.CodeNotImplemented {
				status = http.StatusNotImplemented
			}
			s.writeErr(w, r, status, verdict.Code, "retrieval denied by restriction")
			return
		}
	}

	rec, err := s.Store.GetAndDelete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.writeErr(w, r, http.StatusServiceUnavailable, protocol.CodeStoreUnavailable, "secret store unavailable")
		return
	}

	if s.Domain != nil {
		s.Domain.SecretsRetrieved.Inc()
	}
	if s.Notifier != nil {
		_ = s.Notifier.Notify(r.Context(), notifier.Payload{
			Event:     notifier.EventRetrieved,
			ID:        id,
			Timestamp: time.Now().Unix(),
		})
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rec.Ciphertext))
}

// evaluateRestrictions runs the IP/country/ASN checks through
// restriction.Evaluate, then handles the passphrase gate separately: the
// client hashes the passphrase before it ever leaves the browser (see
// X-Passphrase below), so the server only ever sees a candidate hash and
// must compare it directly against the stored hash rather than routing it
// through Evaluate's raw-passphrase path.
//
// A country/ASN restriction present without the matching header configured
// on this server replies NOT_IMPLEMENTED rather than silently denying or
// (worse) silently allowing: the operator hasn't wired a GeoIP/ASN source,
// so the rule can never be honestly evaluated either way.
func (s *Server) evaluateRestrictions(r *http.Request, id string, restr *store.Restrictions) restriction.Verdict {
	if len(restr.AllowedCountries) > 0 && s.CountryHeader == "" {
		return restriction.Verdict{Allowed: false, Code: protocol.CodeNotImplemented}
	}
	if len(restr.AllowedASNs) > 0 && s.ASNHeader == "" {
		return restriction.Verdict{Allowed: false, Code: protocol.CodeNotImplemented}
	}

	rr := restriction.Restrictions{
		AllowedCountries: restr.AllowedCountries,
		AllowedASNs:      restr.AllowedASNs,
	}
	for _, cidr := range restr.AllowedIPs {
		if prefix, err := parseIPOrPrefix(cidr); err == nil {
			rr.AllowedIPs = append(rr.AllowedIPs, prefix)
		}
	}

	req := restriction.Request{
		IP: s.clientIP(r),
	}
	if s.CountryHeader != "" {
		req.Country = r.Header.Get(s.CountryHeader)
	}
	if s.ASNHeader != "" {
		req.ASN = parseASN(r.Header.Get(s.ASNHeader))
	}

	if v := restriction.Evaluate(rr, req, 0); !v.Allowed {
		return v
	}

	if restr.PassphraseHash == "" {
		return restriction.Verdict{Allowed: true}
	}

	candidate := r.Header.Get("X-Passphrase")
	if restriction.PassphraseHashMatches(restr.PassphraseHash, candidate) {
		return restriction.Verdict{Allowed: true}
	}

	ttl, err := s.Store.TTL(r.Context(), id)
	if err != nil || ttl <= 0 {
		ttl = time.Hour
	}
	attempts, err := s.Attempts.IncrementAttempt(r.Context(), id, ttl)
	if err != nil {
		attempts = restriction.MaxPassphraseAttempts
	}
	return restriction.Verdict{
		Allowed: false,
		Code:    protocol.CodeForbiddenPassphrase,
		Destroy: attempts >= restriction.MaxPassphraseAttempts,
	}
}

// parseASN parses a decimal ASN header value, tolerating the conventional
// "AS" prefix (e.g. "AS13335"). An unparseable or empty value yields 0,
// which Evaluate treats as "unknown" and therefore never matches an
// allow-list.
func parseASN(v string) uint32 {
	v = strings.TrimPrefix(strings.TrimSpace(v), "AS")
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

type mintRequest struct {
	UploadLimit int64 `json:"upload_limit"`
	TTLSeconds  int64 `json:"ttl_seconds"`
}

type mintResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	if !s.AdminAPIEnabled {
		s.writeErr(w, r, http.StatusNotImplemented, protocol.CodeNotImplemented, "admin API is disabled")
		return
	}

	bearer := bearerToken(r)
	rec, err := s.Authorizer.Authenticate(r.Context(), bearer)
	if err != nil || rec.Kind != token.KindAdmin {
		s.writeErr(w, r, http.StatusUnauthorized, protocol.CodeAuthenticationRequired, "admin token required")
		return
	}

	if !s.TrustedProxies.Contains(s.clientIP(r)) {
		s.writeErr(w, r, http.StatusForbidden, protocol.CodeForbiddenIP, "admin endpoint reachable only from trusted ranges")
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, r, http.StatusBadRequest, protocol.CodeBadRequest, "malformed JSON body")
		return
	}

	raw, err := s.Authorizer.MintUserToken(r.Context(), req.UploadLimit, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		s.writeErr(w, r, http.StatusServiceUnavailable, protocol.CodeStoreUnavailable, "token store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(mintResponse{Token: raw})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealthy(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type publicConfig struct {
	AnonymousUploadLimit int64 `json:"anonymous_upload_limit"`
	MaxTTLSeconds        int64 `json:"max_ttl_seconds"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := publicConfig{
		AnonymousUploadLimit: s.Authorizer.AnonymousUploadLimit,
		MaxTTLSeconds:        int64(s.MaxTTL.Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

// parseIPOrPrefix accepts either CIDR notation or a bare address, treating
// a bare address as an exact-match /32 or /128 prefix.
func parseIPOrPrefix(s string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(s); err == nil {
		return prefix, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, status int, code protocol.Code, msg string) {
	s.ResErr.WriteCode(w, r, status, code, msg)
}
