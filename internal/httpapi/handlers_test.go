package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/teal-finance/hakanai/internal/httpapi"
	"github.com/teal-finance/hakanai/internal/notifier"
	"github.com/teal-finance/hakanai/internal/restriction"
	"github.com/teal-finance/hakanai/internal/store"
	"github.com/teal-finance/hakanai/internal/token"
	"github.com/teal-finance/hakanai/metrics"
	"github.com/teal-finance/hakanai/reserr"
)

// sharedMetrics registers the Prometheus collectors once per test binary;
// Metrics/Domain each register on the global default registry, so building
// a fresh pair per test would panic on the second registration.
var (
	sharedMetricsOnce sync.Once
	sharedMetrics     *metrics.Metrics
	sharedDomain      *metrics.Domain
)

func testMetrics() (*metrics.Metrics, *metrics.Domain) {
	sharedMetricsOnce.Do(func() {
		sharedMetrics = metrics.New()
		sharedDomain = metrics.NewDomain()
	})
	return sharedMetrics, sharedDomain
}

func newTestServer(t *testing.T, anonymousUploadLimit int64) (*httpapi.Server, *notifier.RecordingNotifier) {
	t.Helper()
	mem := store.NewMemStore()
	rec := notifier.NewRecording()
	m, domain := testMetrics()

	s := &httpapi.Server{
		Store:      mem,
		Attempts:   mem,
		Authorizer: token.NewAuthorizer(token.NewKVStore(mem.AsKV("")), anonymousUploadLimit),
		Notifier:   rec,
		Metrics:    m,
		Domain:     domain,
		MaxTTL:     24 * time.Hour,
		ResErr:     reserr.New(""),
	}
	if err := s.Authorizer.Bootstrap(context.Background(), "admin-secret", 10<<20); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return s, rec
}

func TestCreateAndRetrieveRoundTrip(t *testing.T) {
	s, rec := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	body := `{"data":"Y2lwaGVydGV4dA==","expires_in":60}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", w.Code, w.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected non-empty id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("retrieve status = %d, body=%s", getW.Code, getW.Body.String())
	}
	if getW.Body.String() != "Y2lwaGVydGV4dA==" {
		t.Fatalf("retrieve body = %q", getW.Body.String())
	}

	// Second retrieval must fail: one-shot consumption.
	secondW := httptest.NewRecorder()
	r.ServeHTTP(secondW, httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil))
	if secondW.Code != http.StatusNotFound {
		t.Fatalf("second retrieve status = %d, want 404", secondW.Code)
	}

	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(calls))
	}
	if calls[0].Event != notifier.EventCreated || calls[1].Event != notifier.EventRetrieved {
		t.Fatalf("unexpected notification events: %+v", calls)
	}
}

func TestCreateRejectsOversizedPayload(t *testing.T) {
	s, _ := newTestServer(t, 4)
	r := s.Router(nil, true)

	body := `{"data":"waytoobigforthefourbytelimit","expires_in":60}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
}

func TestCreateRejectsTTLAboveMax(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	s.MaxTTL = time.Minute
	r := s.Router(nil, true)

	body := `{"data":"Y2lwaGVydGV4dA==","expires_in":3600}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateRejectsAnonymousWhenDisabled(t *testing.T) {
	s, _ := newTestServer(t, 0)
	r := s.Router(nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(`{"data":"eA==","expires_in":60}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRetrieveDeniedByIPRestriction(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	createBody := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"allowed_ips":["10.0.0.0/8"]}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(createBody)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil)
	getReq.RemoteAddr = "192.168.1.1:12345"
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", getW.Code, getW.Body.String())
	}
}

func TestRetrieveCountryRestrictionWithoutHeaderConfiguredIsNotImplemented(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	createBody := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"allowed_countries":["FR"]}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(createBody)))
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil))

	if getW.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501, body=%s", getW.Code, getW.Body.String())
	}
}

func TestRetrieveASNRestrictionWithoutHeaderConfiguredIsNotImplemented(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	createBody := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"allowed_asns":[13335]}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(createBody)))
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil))

	if getW.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501, body=%s", getW.Code, getW.Body.String())
	}
}

func TestRetrieveCountryRestrictionWithHeaderConfigured(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	s.CountryHeader = "X-Geo-Country"
	r := s.Router(nil, true)

	createBody := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"allowed_countries":["FR"]}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(createBody)))
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	deniedReq := httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil)
	deniedReq.Header.Set("X-Geo-Country", "DE")
	deniedW := httptest.NewRecorder()
	r.ServeHTTP(deniedW, deniedReq)
	if deniedW.Code != http.StatusForbidden {
		t.Fatalf("mismatched country status = %d, want 403, body=%s", deniedW.Code, deniedW.Body.String())
	}

	allowedReq := httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil)
	allowedReq.Header.Set("X-Geo-Country", "FR")
	allowedW := httptest.NewRecorder()
	r.ServeHTTP(allowedW, allowedReq)
	if allowedW.Code != http.StatusOK {
		t.Fatalf("matching country status = %d, want 200, body=%s", allowedW.Code, allowedW.Body.String())
	}
}

func TestCreateRejectsMalformedAllowedIP(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	body := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"allowed_ips":["not-an-ip"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", w.Code, w.Body.String())
	}
}

func TestRetrieveWithCorrectPassphraseSucceeds(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	hash := restriction.HashPassphrase("open sesame")
	createBody := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"passphrase_hash":"` + hash + `"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(createBody)))
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil)
	getReq.Header.Set("X-Passphrase", hash)
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", getW.Code, getW.Body.String())
	}
}

func TestRetrieveWithWrongPassphraseDenies(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	hash := restriction.HashPassphrase("open sesame")
	createBody := `{"data":"Y2lwaGVydGV4dA==","expires_in":60,"restrictions":{"passphrase_hash":"` + hash + `"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/secret", bytes.NewBufferString(createBody)))
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/secret/"+created.ID, nil)
	getReq.Header.Set("X-Passphrase", restriction.HashPassphrase("wrong"))
	getW := httptest.NewRecorder()
	r.ServeHTTP(getW, getReq)

	if getW.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", getW.Code)
	}
}

func TestMintTokenRequiresAdmin(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	s.AdminAPIEnabled = true
	r := s.Router(nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/tokens", bytes.NewBufferString(`{"upload_limit":1000,"ttl_seconds":3600}`))
	req.Header.Set("Authorization", "Bearer not-the-admin-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestMintTokenSucceedsFromTrustedProxy(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	s.AdminAPIEnabled = true
	s.TrustedProxies = restriction.TrustedIPs{Prefixes: []netip.Prefix{netip.MustParsePrefix("127.0.0.0/8")}}
	s.TrustedIPHeader = "X-Forwarded-For"
	r := s.Router(nil, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/tokens", bytes.NewBufferString(`{"upload_limit":1000,"ttl_seconds":3600}`))
	req.Header.Set("Authorization", "Bearer admin-secret")
	req.RemoteAddr = "127.0.0.1:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode mint response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}
}

func TestReadyAndHealthy(t *testing.T) {
	s, _ := newTestServer(t, 1<<20)
	r := s.Router(nil, true)

	for _, path := range []string{"/ready", "/healthy"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, w.Code)
		}
	}
}
