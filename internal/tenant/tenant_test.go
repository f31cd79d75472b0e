package tenant_test

import (
	"errors"
	"testing"
	"time"

	"pagebuilder/internal/secret"
	"pagebuilder/internal/tenant"
)

func TestStore_LoginHydrateLogout(t *testing.T) {
	secrets := secret.NewFileStore(t.TempDir())
	s := tenant.NewStore(secrets)

	if err := s.Hydrate(); err != nil {
		t.Fatalf("hydrate empty: %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("session present before login")
	}

	sess := tenant.Session{Token: "tok", SchoolID: "s1", Subdomain: "greenfield"}
	if err := s.Login(sess); err != nil {
		t.Fatalf("login: %v", err)
	}

	// A fresh store over the same secrets sees the session.
	s2 := tenant.NewStore(secrets)
	if err := s2.Hydrate(); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if got := s2.Subdomain(); got != "greenfield" {
		t.Errorf("subdomain = %q", got)
	}
	tok, err := s2.Token()
	if err != nil || tok.AccessToken != "tok" {
		t.Fatalf("token = %v, %v", tok, err)
	}

	if err := s2.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := s2.Token(); !errors.Is(err, tenant.ErrNotLoggedIn) {
		t.Errorf("token after logout err = %v", err)
	}
	s3 := tenant.NewStore(secrets)
	_ = s3.Hydrate()
	if _, ok := s3.Current(); ok {
		t.Error("logout did not clear storage")
	}
}

func TestStore_ExpiredToken(t *testing.T) {
	s := tenant.NewStore(secret.NewFileStore(t.TempDir()))
	_ = s.Login(tenant.Session{Token: "tok", ExpiresAt: time.Now().Add(-time.Hour)})
	if _, err := s.Token(); err == nil {
		t.Error("expected an error for an expired token")
	}
}

func TestStore_LoginRequiresToken(t *testing.T) {
	s := tenant.NewStore(secret.NewFileStore(t.TempDir()))
	if err := s.Login(tenant.Session{SchoolID: "x"}); err == nil {
		t.Error("expected an error for an empty token")
	}
}
