package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/teal-finance/hakanai/internal/store"
	"github.com/teal-finance/hakanai/internal/token"
)

func newAuthorizer() *token.Authorizer {
	kv := store.NewMemStore().AsKV("")
	return token.NewAuthorizer(token.NewKVStore(kv), 1<<20)
}

func TestBootstrapAndAuthenticate(t *testing.T) {
	a := newAuthorizer()
	ctx := context.Background()

	if err := a.Bootstrap(ctx, "admin-secret", 1<<30); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	rec, err := a.Authenticate(ctx, "admin-secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if rec.Kind != token.KindAdmin {
		t.Errorf("Kind = %q, want admin", rec.Kind)
	}
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	a := newAuthorizer()
	if _, err := a.Authenticate(context.Background(), "nope"); err != token.ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	a := newAuthorizer()
	if _, err := a.Authenticate(context.Background(), ""); err != token.ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestMintUserTokenRoundTrip(t *testing.T) {
	a := newAuthorizer()
	ctx := context.Background()

	raw, err := a.MintUserToken(ctx, 4096, time.Hour)
	if err != nil {
		t.Fatalf("MintUserToken: %v", err)
	}

	rec, err := a.Authenticate(ctx, raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if rec.Kind != token.KindUser || rec.UploadLimit != 4096 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestRevoke(t *testing.T) {
	a := newAuthorizer()
	ctx := context.Background()

	raw, err := a.MintUserToken(ctx, 4096, time.Hour)
	if err != nil {
		t.Fatalf("MintUserToken: %v", err)
	}
	if err := a.Revoke(ctx, raw); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := a.Authenticate(ctx, raw); err != token.ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken after revoke", err)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	if token.Hash("abc") != token.Hash("abc") {
		t.Fatal("Hash is not deterministic")
	}
	if token.Hash("abc") == token.Hash("abd") {
		t.Fatal("Hash collided on different input")
	}
}

func TestGenerateProducesUniqueTokens(t *testing.T) {
	a, err := token.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := token.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a == b {
		t.Fatal("Generate produced identical tokens")
	}
}
