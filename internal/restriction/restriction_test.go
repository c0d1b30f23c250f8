package restriction_test

import (
	"net/netip"
	"testing"

	"github.com/teal-finance/hakanai/internal/protocol"
	"github.com/teal-finance/hakanai/internal/restriction"
)

func TestEvaluateNoRulesAllows(t *testing.T) {
	v := restriction.Evaluate(restriction.Restrictions{}, restriction.Request{}, 0)
	if !v.Allowed {
		t.Fatalf("expected allow, got %+v", v)
	}
}

func TestEvaluateIPDenied(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.0/8")
	r := restriction.Restrictions{AllowedIPs: []netip.Prefix{prefix}}

	req := restriction.Request{IP: netip.MustParseAddr("192.168.1.1")}
	v := restriction.Evaluate(r, req, 0)
	if v.Allowed || v.Code != protocol.CodeForbiddenIP {
		t.Fatalf("got %+v, want FORBIDDEN_IP", v)
	}
}

func TestEvaluateIPAllowed(t *testing.T) {
	prefix := netip.MustParsePrefix("10.0.0.0/8")
	r := restriction.Restrictions{AllowedIPs: []netip.Prefix{prefix}}

	req := restriction.Request{IP: netip.MustParseAddr("10.1.2.3")}
	v := restriction.Evaluate(r, req, 0)
	if !v.Allowed {
		t.Fatalf("got %+v, want allow", v)
	}
}

func TestEvaluateCountryDenied(t *testing.T) {
	r := restriction.Restrictions{AllowedCountries: []string{"FR", "DE"}}
	v := restriction.Evaluate(r, restriction.Request{Country: "US"}, 0)
	if v.Allowed || v.Code != protocol.CodeForbiddenGeo {
		t.Fatalf("got %+v, want FORBIDDEN_GEO", v)
	}
}

func TestEvaluateASNDenied(t *testing.T) {
	r := restriction.Restrictions{AllowedASNs: []uint32{64512}}
	v := restriction.Evaluate(r, restriction.Request{ASN: 64513}, 0)
	if v.Allowed || v.Code != protocol.CodeForbiddenASN {
		t.Fatalf("got %+v, want FORBIDDEN_ASN", v)
	}
}

func TestEvaluatePassphraseWrongDeniesWithoutDestroy(t *testing.T) {
	r := restriction.Restrictions{PassphraseHash: restriction.HashPassphrase("correct horse")}
	v := restriction.Evaluate(r, restriction.Request{Passphrase: "wrong"}, 1)
	if v.Allowed || v.Code != protocol.CodeForbiddenPassphrase {
		t.Fatalf("got %+v, want FORBIDDEN_PASSPHRASE", v)
	}
	if v.Destroy {
		t.Fatal("Destroy should not be set below MaxPassphraseAttempts")
	}
}

func TestEvaluatePassphraseExhaustedDestroys(t *testing.T) {
	r := restriction.Restrictions{PassphraseHash: restriction.HashPassphrase("correct horse")}
	v := restriction.Evaluate(r, restriction.Request{Passphrase: "wrong"}, restriction.MaxPassphraseAttempts)
	if !v.Destroy {
		t.Fatal("expected Destroy at MaxPassphraseAttempts")
	}
}

func TestEvaluatePassphraseCorrectAllows(t *testing.T) {
	r := restriction.Restrictions{PassphraseHash: restriction.HashPassphrase("correct horse")}
	v := restriction.Evaluate(r, restriction.Request{Passphrase: "correct horse"}, 1)
	if !v.Allowed {
		t.Fatalf("got %+v, want allow", v)
	}
}

func TestEvaluateOrderIPBeforeCountry(t *testing.T) {
	r := restriction.Restrictions{
		AllowedIPs:       []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
		AllowedCountries: []string{"FR"},
	}
	req := restriction.Request{IP: netip.MustParseAddr("192.168.1.1"), Country: "US"}
	v := restriction.Evaluate(r, req, 0)
	if v.Code != protocol.CodeForbiddenIP {
		t.Fatalf("got %+v, want IP to be checked first", v)
	}
}

func TestTrustedIPsContains(t *testing.T) {
	t1 := restriction.TrustedIPs{Prefixes: []netip.Prefix{netip.MustParsePrefix("172.16.0.0/12")}}
	if !t1.Contains(netip.MustParseAddr("172.16.5.5")) {
		t.Fatal("expected 172.16.5.5 to be trusted")
	}
	if t1.Contains(netip.MustParseAddr("8.8.8.8")) {
		t.Fatal("did not expect 8.8.8.8 to be trusted")
	}
}

func TestAdminPolicyDisabledAllowsByDefault(t *testing.T) {
	p, err := restriction.LoadAdminPolicy(nil)
	if err != nil {
		t.Fatalf("LoadAdminPolicy: %v", err)
	}
	allow, err := p.Allow(nil, nil) //nolint:staticcheck // disabled path never touches ctx/req
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allow {
		t.Fatal("disabled policy must allow by default")
	}
}
