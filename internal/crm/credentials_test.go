package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadstats_backend/platform/apperr"
	"leadstats_backend/platform/config"
	"leadstats_backend/platform/logger"
)

func testCRMConfig(accountsURL string) *config.Config {
	return &config.Config{
		CRMAccountsURL:  accountsURL,
		CRMAPIURL:       accountsURL,
		CRMClientID:     "client-id",
		CRMClientSecret: "client-secret",
		CRMRefreshToken: "refresh-token",
	}
}

func TestAccessTokenExchangeAndCache(t *testing.T) {
	exchanges := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v2/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Fatalf("unexpected grant_type %q", r.Form.Get("grant_type"))
		}
		exchanges++
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer srv.Close()

	m := NewCredentialManager(testCRMConfig(srv.URL), logger.New("development"))

	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("expected tok-1, got %q", token)
	}

	// Second call must reuse the cached token.
	if _, err := m.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken (cached): %v", err)
	}
	if exchanges != 1 {
		t.Fatalf("expected 1 exchange, got %d", exchanges)
	}
}

func TestAccessTokenExpiryMargin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer srv.Close()

	m := NewCredentialManager(testCRMConfig(srv.URL), logger.New("development"))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if _, err := m.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken: %v", err)
	}

	// A token returned at any moment must have >= 5 minutes of nominal
	// lifetime left: cached expiry is issuedAt + expires_in - 5m.
	remaining := m.expiresAt.Sub(base)
	if remaining != 55*time.Minute {
		t.Fatalf("expected cached lifetime 55m, got %s", remaining)
	}

	// Just past the margin boundary the cache must not be used.
	m.now = func() time.Time { return base.Add(55 * time.Minute) }
	if _, err := m.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken (refresh): %v", err)
	}
	if got := m.expiresAt.Sub(base.Add(55 * time.Minute)); got != 55*time.Minute {
		t.Fatalf("expected refreshed expiry, got remaining %s", got)
	}
}

func TestAccessTokenMissingConfig(t *testing.T) {
	cfg := testCRMConfig("https://accounts.example.com")
	cfg.CRMRefreshToken = ""

	m := NewCredentialManager(cfg, logger.New("development"))
	_, err := m.AccessToken(context.Background())
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestExchange404NamesRegionalEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewCredentialManager(testCRMConfig(srv.URL), logger.New("development"))
	_, err := m.AccessToken(context.Background())
	if !apperr.Is(err, apperr.KindAuthExchange) {
		t.Fatalf("expected auth exchange error, got %v", err)
	}
	for _, region := range []string{"accounts.zoho.com", "accounts.zoho.eu", "accounts.zoho.in", "accounts.zoho.com.au"} {
		if !strings.Contains(err.Error(), region) {
			t.Fatalf("404 diagnostic missing regional hint %q: %v", region, err)
		}
	}
}

func TestExchangeRejectedWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	m := NewCredentialManager(testCRMConfig(srv.URL), logger.New("development"))
	_, err := m.AccessToken(context.Background())
	if !apperr.Is(err, apperr.KindAuthExchange) {
		t.Fatalf("expected auth exchange error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid_client") {
		t.Fatalf("expected upstream error in message, got %v", err)
	}
}

func TestTokenEndpointNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://accounts.zoho.com", "https://accounts.zoho.com/oauth/v2/token"},
		{"https://accounts.zoho.com/", "https://accounts.zoho.com/oauth/v2/token"},
		{"https://accounts.zoho.eu/oauth/v2/token", "https://accounts.zoho.eu/oauth/v2/token"},
		{"https://accounts.zoho.eu/oauth/v2/token/", "https://accounts.zoho.eu/oauth/v2/token"},
	}

	for _, tc := range cases {
		cfg := testCRMConfig(tc.in)
		m := NewCredentialManager(cfg, logger.New("development"))
		if got := m.tokenEndpoint(); got != tc.want {
			t.Fatalf("tokenEndpoint(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
