package zoomapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"callpipe/internal/config"
)

// refreshMargin is how long before expiry a cached token stops being served.
const refreshMargin = 60 * time.Second

const (
	defaultOAuthURL = "https://zoom.us/oauth/token"
	defaultAPIURL   = "https://api.zoom.us/v2"
)

var ErrMissingCredentials = errors.New("zoom account id, client id and client secret are required")

// Client calls the provider's API with a cached server-to-server OAuth token.
// All other components reach the provider only through this client; it owns
// the only process-wide mutable credential state.
type Client struct {
	accountID    string
	clientID     string
	clientSecret string

	oauthURL string
	apiURL   string
	httpc    *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time

	now func() time.Time
}

type Option func(*Client)

// WithBaseURLs overrides the provider endpoints; used in tests.
func WithBaseURLs(oauthURL, apiURL string) Option {
	return func(c *Client) {
		c.oauthURL = oauthURL
		c.apiURL = apiURL
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func NewClient(cfg config.ZoomConfig, opts ...Option) (*Client, error) {
	if cfg.AccountID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		accountID:    cfg.AccountID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		oauthURL:     defaultOAuthURL,
		apiURL:       defaultAPIURL,
		httpc:        &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessToken returns a cached bearer token, refreshing when the cached one
// is within the refresh margin of expiry. Refresh runs under the mutex with a
// double-checked expiry, so concurrent callers during expiry trigger exactly
// one upstream request.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.expiry.After(c.now().Add(refreshMargin)) {
		return c.token, nil
	}

	token, expiresIn, err := c.requestToken(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	c.token = token
	c.expiry = c.now().Add(time.Duration(expiresIn) * time.Second)
	return c.token, nil
}

// ClearCache drops the cached token; the next AccessToken call refreshes.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}

func (c *Client) requestToken(ctx context.Context) (string, int, error) {
	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, fmt.Errorf("oauth endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", 0, errors.New("oauth response contained no access_token")
	}
	return out.AccessToken, out.ExpiresIn, nil
}

// DownloadToken mints a scoped token for downloading one recording's media.
func (c *Client) DownloadToken(ctx context.Context, recordingID string) (string, error) {
	if recordingID == "" {
		return "", errors.New("recording id is required")
	}
	access, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/phone/recordings/%s/download_token", c.apiURL, url.PathEscape(recordingID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("download token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("download token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode download token response: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("download token response contained no token")
	}
	return out.Token, nil
}
