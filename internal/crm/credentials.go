package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"leadstats_backend/platform/apperr"
	"leadstats_backend/platform/config"
	"leadstats_backend/platform/logger"
)

const (
	tokenPath = "/oauth/v2/token"

	// expiryMargin is subtracted from the upstream expires_in so a token
	// handed to a caller always has at least this long left to live.
	expiryMargin = 5 * time.Minute
)

// regionalEndpointHint is appended to 404 diagnostics on the token exchange:
// pointing the refresh token at the wrong regional accounts host is by far
// the most common misconfiguration.
const regionalEndpointHint = "verify CRM_ACCOUNTS_URL matches the region the refresh token was issued in: " +
	"accounts.zoho.com (US), accounts.zoho.eu (EU), accounts.zoho.in (IN), accounts.zoho.com.au (AU)"

// CredentialManager owns the OAuth access token lifecycle: refresh-token
// exchange, caching with a safety margin, and invalidation on auth failures.
// The check-then-exchange sequence is serialized with a mutex; concurrent
// callers may still observe redundant exchanges around an invalidation,
// which is harmless because exchanges are idempotent.
type CredentialManager struct {
	cfg        config.CRMConfig
	log        *logger.Logger
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewCredentialManager creates a credential manager over the given config.
func NewCredentialManager(cfg config.CRMConfig, log *logger.Logger) *CredentialManager {
	return &CredentialManager{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// AccessToken returns a valid access token, performing a refresh-token grant
// exchange when no cached token with sufficient remaining lifetime exists.
func (m *CredentialManager) AccessToken(ctx context.Context) (string, error) {
	if err := m.checkConfig(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt) {
		return m.token, nil
	}

	return m.exchange(ctx)
}

// Invalidate discards the cached token so the next call performs a fresh
// exchange. Called by the request client on any authorization failure signal.
func (m *CredentialManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

func (m *CredentialManager) checkConfig() error {
	switch {
	case m.cfg.GetCRMAccountsURL() == "":
		return apperr.Configuration("CRM_ACCOUNTS_URL is not configured")
	case m.cfg.GetCRMClientID() == "":
		return apperr.Configuration("CRM_CLIENT_ID is not configured")
	case m.cfg.GetCRMClientSecret() == "":
		return apperr.Configuration("CRM_CLIENT_SECRET is not configured")
	case m.cfg.GetCRMRefreshToken() == "":
		return apperr.Configuration("CRM_REFRESH_TOKEN is not configured")
	}
	return nil
}

// tokenEndpoint normalizes the configured accounts URL: trailing slashes are
// stripped and an accidentally embedded token path is collapsed to its base
// before the canonical token path is appended.
func (m *CredentialManager) tokenEndpoint() string {
	base := strings.TrimRight(strings.TrimSpace(m.cfg.GetCRMAccountsURL()), "/")
	if idx := strings.Index(base, tokenPath); idx >= 0 {
		base = base[:idx]
	}
	return base + tokenPath
}

// exchange performs the refresh_token grant. Caller must hold m.mu.
func (m *CredentialManager) exchange(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.cfg.GetCRMClientID())
	form.Set("client_secret", m.cfg.GetCRMClientSecret())
	form.Set("refresh_token", m.cfg.GetCRMRefreshToken())

	endpoint := m.tokenEndpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Wrap(apperr.KindAuthExchange, "create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	issuedAt := m.now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.log.TokenEvent("exchange", false, err.Error())
		return "", apperr.Wrap(apperr.KindAuthExchange, "token exchange request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		m.log.TokenEvent("exchange", false, "endpoint returned 404")
		return "", apperr.AuthExchange(fmt.Sprintf("token endpoint %s returned 404; %s", endpoint, regionalEndpointHint))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		reason := payload.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		m.log.TokenEvent("exchange", false, reason)
		return "", apperr.AuthExchange("token exchange did not return an access token: " + reason)
	}

	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 3600
	}

	m.token = payload.AccessToken
	m.expiresAt = issuedAt.Add(time.Duration(payload.ExpiresIn)*time.Second - expiryMargin)
	m.log.TokenEvent("exchange", true, "")

	return m.token, nil
}
