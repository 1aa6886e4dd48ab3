package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadstats_backend/platform/apperr"
	"leadstats_backend/platform/config"
	"leadstats_backend/platform/logger"

	"golang.org/x/time/rate"
)

const requestTimeout = 15 * time.Second

// invalidTokenCodes are the CRM-body-embedded error codes that signal an
// expired or revoked token even when the HTTP status is not 401.
var invalidTokenCodes = map[string]bool{
	"INVALID_TOKEN":          true,
	"AUTHENTICATION_FAILURE": true,
}

// ListResponse is the standard envelope for paginated resource endpoints.
type ListResponse struct {
	Data []Record `json:"data"`
	Info struct {
		MoreRecords bool `json:"more_records"`
	} `json:"info"`
}

// Client issues authenticated, timeout-bounded calls against the CRM API.
// A single transparent retry is performed when a call fails due to token
// expiry, signalled either by HTTP 401 or an embedded invalid-token code.
type Client struct {
	creds      *CredentialManager
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewClient creates a CRM API client.
func NewClient(cfg config.CRMConfig, creds *CredentialManager, log *logger.Logger) *Client {
	return &Client{
		creds:      creds,
		apiURL:     strings.TrimRight(cfg.GetCRMAPIURL(), "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		// The CRM meters API credits per org; stay well under the window.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     log,
	}
}

// Get performs an authenticated GET and decodes the response into out.
// Failures are logged.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.get(ctx, path, query, out, false)
}

// GetSilent behaves like Get but suppresses error logging. Used for probes
// that are expected to fail routinely, such as notes lookups on records
// that have no notes.
func (c *Client) GetSilent(ctx context.Context, path string, query url.Values, out any) error {
	return c.get(ctx, path, query, out, true)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, silent bool) error {
	endpoint := c.apiURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// Bounded retry: at most one transparent re-auth per logical call.
	for attempt := 0; attempt <= 1; attempt++ {
		token, err := c.creds.AccessToken(ctx)
		if err != nil {
			return err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "create crm request", err)
		}
		req.Header.Set("Authorization", "Zoho-oauthtoken "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if !silent {
				c.log.RemoteAPIError(path, 0, err.Error())
			}
			return apperr.Wrap(apperr.KindRemoteAPI, "crm request failed", err)
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			if attempt == 0 {
				c.creds.Invalidate()
				continue
			}
			if !silent {
				c.log.RemoteAPIError(path, resp.StatusCode, string(body))
			}
			return apperr.RemoteAPI(resp.StatusCode, string(body))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if !silent {
				c.log.RemoteAPIError(path, resp.StatusCode, string(body))
			}
			return apperr.RemoteAPI(resp.StatusCode, string(body))
		}

		// The API returns empty (or HTML) bodies for some "no related
		// records" cases; normalize those to an empty successful result.
		if len(strings.TrimSpace(string(body))) == 0 || !json.Valid(body) {
			return nil
		}

		if embeddedInvalidToken(body) {
			if attempt == 0 {
				c.creds.Invalidate()
				continue
			}
			if !silent {
				c.log.RemoteAPIError(path, resp.StatusCode, string(body))
			}
			return apperr.RemoteAPI(resp.StatusCode, string(body))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			// Decodable JSON with an unexpected shape still counts as an
			// empty result rather than an error.
			return nil
		}
		return nil
	}

	return apperr.RemoteAPI(http.StatusUnauthorized, "authorization failed after retry")
}

// embeddedInvalidToken reports whether the payload's first record carries an
// invalid-token error code despite a successful HTTP status.
func embeddedInvalidToken(body []byte) bool {
	var probe struct {
		Data []struct {
			Code string `json:"code"`
		} `json:"data"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	if invalidTokenCodes[probe.Code] {
		return true
	}
	return len(probe.Data) > 0 && invalidTokenCodes[probe.Data[0].Code]
}
