package siteapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/siteapi"
)

type fakeTenant struct{ token, sub string }

func (f fakeTenant) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: f.token, TokenType: "Bearer"}, nil
}
func (f fakeTenant) Subdomain() string { return f.sub }

func TestClient_SaveSections(t *testing.T) {
	var got domain.PageUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/website/pages/home" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("authorization = %q", auth)
		}
		if sub := r.Header.Get(siteapi.TenantHeader); sub != "greenfield" {
			t.Errorf("tenant header = %q", sub)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := siteapi.New(srv.URL+"/", fakeTenant{"tok", "greenfield"}, 0)
	sections := []domain.Section{
		{Type: "hero", Content: json.RawMessage(`{"headline":"Hi"}`), IsVisible: true},
	}
	if err := c.SaveSections(context.Background(), "home", sections); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(got.Sections) != 1 || got.Sections[0].Type != "hero" || !got.Sections[0].IsVisible {
		t.Errorf("body = %+v", got)
	}
}

func TestClient_GetPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/website/pages/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"home","title":"Home","sections":[{"type":"text","content":{"heading":"A"},"isVisible":true}]}`))
	}))
	defer srv.Close()

	c := siteapi.New(srv.URL, fakeTenant{token: "tok"}, 0)
	page, err := c.GetPage(context.Background(), "home")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if page.Title != "Home" || len(page.Sections) != 1 {
		t.Errorf("page = %+v", page)
	}

	_, err = c.GetPage(context.Background(), "missing")
	if !errors.Is(err, domain.ErrPageNotFound) {
		t.Errorf("err = %v, want ErrPageNotFound", err)
	}
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := siteapi.New(srv.URL, fakeTenant{token: "tok"}, 0)
	if err := c.SaveSections(context.Background(), "home", nil); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
