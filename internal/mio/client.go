package mio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/snaka/mioportal/internal/domain"
)

const (
	// DefaultBaseURL is the production portal origin.
	DefaultBaseURL = "https://www.iijmio.jp"

	defaultUserAgent = "mioportal/1.0"

	requestTimeout   = 30 * time.Second
	maxResponseBytes = 4 << 20

	loginPagePath        = "/auth/login"
	loginAPIPath         = "/api/member/login"
	topAPIPath           = "/api/member/top"
	billSummaryAPIPath   = "/api/member/getBillSummary"
	serviceStatusAPIPath = "/api/member/getServiceStatus"
	billDetailPagePath   = "/member/bill/detail"
	usageLandingPagePath = "/member/usage"
	usageMonthlyPagePath = "/member/usage/monthly"
	usageDailyPagePath   = "/member/usage/daily"
)

// Backend error codes observed to signal an expired or missing session. The
// backend is undocumented, so the set stays extensible through Options rather
// than being treated as exhaustive.
var defaultSessionExpiredCodes = []string{"SES0001", "SES0002"}

type Options struct {
	BaseURL             string
	HTTPClient          *http.Client
	UserAgent           string
	SessionExpiredCodes []string
	Now                 func() time.Time
}

// Client owns the authenticated portal session: the cookie jar, the login
// state, and the retry-once-on-expiry protocol every session-dependent call
// runs under. Session state only changes under mu, so callers never observe a
// half-invalidated session.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	expiredCodes map[string]struct{}
	now          func() time.Time

	mu            sync.Mutex
	authenticated bool
	authedCreds   domain.Credentials
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	httpClient.Timeout = requestTimeout

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	codes := opts.SessionExpiredCodes
	if len(codes) == 0 {
		codes = defaultSessionExpiredCodes
	}
	expiredCodes := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		expiredCodes[code] = struct{}{}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		userAgent:    userAgent,
		expiredCodes: expiredCodes,
		now:          now,
	}, nil
}

// HasSession reports whether the client considers itself authenticated. The
// backend may still disagree; callers find out on the next call.
func (c *Client) HasSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Invalidate drops the in-memory session state. Cookies stay in the jar; the
// next session-dependent call re-runs warmup and login.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = false
	c.authedCreds = domain.Credentials{}
}

// Login establishes a fresh session: a warmup GET to the login page to
// satisfy the portal's bot mitigation, then the credential POST. The backend
// answers HTTP 200 even for bad credentials, with the rejection in the JSON
// error envelope.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) error {
	if !creds.Valid() {
		return domain.ErrInvalidCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx, creds)
}

func (c *Client) loginLocked(ctx context.Context, creds domain.Credentials) error {
	c.authenticated = false
	c.authedCreds = domain.Credentials{}

	if _, err := c.fetchHTML(ctx, http.MethodGet, loginPagePath, nil); err != nil {
		return fmt.Errorf("warmup login page: %w", err)
	}

	body := struct {
		MioID    string `json:"mioId"`
		Password string `json:"password"`
	}{MioID: creds.MioID, Password: creds.Password}

	if err := c.fetchJSON(ctx, http.MethodPost, loginAPIPath, body, nil); err != nil {
		var apiErr *domain.BackendAPIError
		if errors.As(err, &apiErr) {
			return &domain.AuthenticationError{Code: apiErr.Code}
		}
		return err
	}

	c.authenticated = true
	c.authedCreds = creds
	return nil
}

// ensureSession makes the client authenticated under creds, logging in when
// there is no session or the session belongs to different credentials.
func (c *Client) ensureSession(ctx context.Context, creds domain.Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authenticated && c.authedCreds == creds {
		return nil
	}
	return c.loginLocked(ctx, creds)
}

// sessionCreds resolves which credentials a call should run under. A nil
// request means "reuse the existing session"; without one that fails with
// ErrNoActiveSession so the orchestrator can fall through its chain.
func (c *Client) sessionCreds(requested *domain.Credentials) (domain.Credentials, error) {
	if requested != nil {
		if !requested.Valid() {
			return domain.Credentials{}, domain.ErrInvalidCredentials
		}
		return *requested, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.authenticated {
		return domain.Credentials{}, domain.ErrNoActiveSession
	}
	return c.authedCreds, nil
}

// withSession runs op under an authenticated session, retrying exactly once
// after a session-expired failure: invalidate, replay login with the same
// credentials, rerun op. Login failures and non-expiry errors propagate
// immediately; a second expiry propagates unmodified.
func (c *Client) withSession(ctx context.Context, requested *domain.Credentials, op func(context.Context) error) error {
	creds, err := c.sessionCreds(requested)
	if err != nil {
		return err
	}

	const maxAttempts = 2
	for attempt := 1; ; attempt++ {
		if err := c.ensureSession(ctx, creds); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt == maxAttempts || !c.isSessionExpired(err) {
			return err
		}
		c.Invalidate()
	}
}

// isSessionExpired classifies an operation failure as "session merely
// expired", the only condition worth one re-login.
func (c *Client) isSessionExpired(err error) bool {
	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, 419:
			return true
		}
		return false
	}

	var apiErr *domain.BackendAPIError
	if errors.As(err, &apiErr) {
		if _, ok := c.expiredCodes[apiErr.Code]; ok {
			return true
		}
		lower := strings.ToLower(apiErr.Code)
		return strings.Contains(lower, "login") || strings.Contains(lower, "unauthorized")
	}

	return false
}

// fetchJSON performs one portal API call. A 2xx body is checked for the
// in-body error envelope before being decoded into out; the backend reports
// most failures as HTTP 200 plus an envelope code.
func (c *Client) fetchJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.NetworkError{Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &domain.HTTPError{StatusCode: resp.StatusCode}
	}

	var envelope struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode %s envelope: %w", path, err)
	}
	if envelope.Error != nil {
		return &domain.BackendAPIError{Code: *envelope.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// fetchHTML fetches one of the portal's server-rendered pages, optionally
// POSTing form values.
func (c *Client) fetchHTML(ctx context.Context, method, path string, form url.Values) (string, error) {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &domain.NetworkError{Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &domain.HTTPError{StatusCode: resp.StatusCode}
	}

	return string(data), nil
}
