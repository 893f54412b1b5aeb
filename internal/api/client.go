// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Configuration constants for the KeyNest API client.
const (
	// DefaultBaseURL is the default KeyNest server address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for API requests. A timeout is
	// a generic transport failure, never treated as an auth failure.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// requestsPerSecond and requestBurst bound the client-side request rate
	// so a misbehaving screen cannot hammer the backend.
	requestsPerSecond = 20
	requestBurst      = 40
)

// CredentialSource is the slice of the session store the transport needs.
// The concrete implementation is session.Store; tests substitute a fake.
type CredentialSource interface {
	// AccessCredential returns the current access credential, or "" when the
	// session is unauthenticated. Absence is not an error: the call proceeds
	// bare and the server decides.
	AccessCredential() string

	// RefreshCredential returns the current refresh credential, or "".
	RefreshCredential() string

	// SetAccessCredential stores a new access credential obtained by the
	// refresh protocol. The refresh credential is not rotated.
	SetAccessCredential(access string)

	// Logout tears down the local session. Idempotent.
	Logout()
}

// Client is the single HTTP entry point for all KeyNest data access.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialSource
	limiter     *rate.Limiter
	userAgent   string

	// onSessionExpired is invoked exactly once per terminal auth failure,
	// after the local session has been cleared. The application binds this
	// to navigation to the sign-in screen.
	onSessionExpired func()

	// onRefreshResult observes every refresh protocol outcome. The
	// application binds this to the local audit trail.
	onRefreshResult func(err error)
}

// NewClient creates a client for the given server address. The credential
// source is required; the expiry handler is optional.
func NewClient(baseURL string, credentials CredentialSource) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		credentials: credentials,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		userAgent:   "keynest-tui/" + Version,
	}
}

// Version is the client version reported in the User-Agent header.
// Overridden at build time.
var Version = "0.1.0"

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient substitutes the underlying HTTP client (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithSessionExpiredHandler sets the handler invoked on terminal auth
// failure. The handler runs after the credential store has been cleared.
func (c *Client) WithSessionExpiredHandler(fn func()) *Client {
	c.onSessionExpired = fn
	return c
}

// WithRefreshObserver sets a callback invoked with the outcome (nil on
// success) of every credential refresh attempt.
func (c *Client) WithRefreshObserver(fn func(err error)) *Client {
	c.onRefreshResult = fn
	return c
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST CORE
// =============================================================================

// logRequest logs an API request without exposing sensitive data.
// Headers (may contain credentials) and bodies (may contain secret values)
// are never logged.
func logRequest(req *http.Request) {
	log.Printf("api request: %s %s", req.Method, req.URL.Path)
}

// logResponse logs status and duration only, never the body.
func logResponse(resp *http.Response, duration time.Duration) {
	log.Printf("api response: %d %s (%v)", resp.StatusCode, resp.Request.URL.Path, duration)
}

// readResponse reads the response body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// do performs an authenticated JSON request against the KeyNest API.
//
// The flow per call is: send with bearer attached (when present); on 401,
// run the refresh protocol at most once and resend; any second 401 is
// terminal. The retry marker is the explicit retried parameter threaded
// through doOnce; request objects are never mutated to carry call state.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doOnce(ctx, method, path, query, body, out, false)
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out any, retried bool) error {
	resp, respBody, err := c.send(ctx, method, path, query, body, true)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Refresh at most once per original call.
		if retried {
			return c.expireSession(resp.StatusCode, respBody)
		}
		refresh := c.credentials.RefreshCredential()
		if refresh == "" {
			// No refresh credential: skip the protocol entirely.
			return c.expireSession(resp.StatusCode, respBody)
		}
		if err := c.refreshAccess(ctx, refresh); err != nil {
			// A stale refresh credential never self-heals client-side.
			return c.expireSession(resp.StatusCode, respBody)
		}
		return c.doOnce(ctx, method, path, query, body, out, true)
	}

	return decodeResponse(resp.StatusCode, respBody, out)
}

// send builds and executes one HTTP exchange. When authenticated is false
// the bearer header is never attached (refresh and login flows).
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, authenticated bool) (*http.Response, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		if access := c.credentials.AccessCredential(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	logRequest(req)
	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// SECURITY: Clear the header copy immediately after the exchange so the
	// credential cannot leak through request dumps.
	req.Header.Del("Authorization")

	if err != nil {
		// No response means no status: normalize with Status 0 so callers
		// branching on *Error see every failure in one shape.
		return nil, nil, transportError(err)
	}
	defer resp.Body.Close()
	logResponse(resp, time.Since(start))

	respBody, err := readResponse(resp)
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}

// decodeResponse turns a completed exchange into the caller's result.
func decodeResponse(status int, body []byte, out any) error {
	if status < 200 || status > 299 {
		return normalizeError(status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// =============================================================================
// REFRESH PROTOCOL
// =============================================================================

// refreshRequest and refreshResponse are the refresh endpoint wire shapes.
// The backend does not rotate the refresh credential.
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// refreshAccess exchanges the refresh credential for a new access
// credential. The call is deliberately unauthenticated: the refresh
// credential is the only proof presented, and it is never sent to any
// other endpoint.
func (c *Client) refreshAccess(ctx context.Context, refresh string) error {
	err := c.runRefresh(ctx, refresh)
	if c.onRefreshResult != nil {
		c.onRefreshResult(err)
	}
	return err
}

func (c *Client) runRefresh(ctx context.Context, refresh string) error {
	resp, body, err := c.send(ctx, http.MethodPost, "/api/auth/token/refresh/", nil, refreshRequest{Refresh: refresh}, false)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return normalizeError(resp.StatusCode, body)
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if rr.Access == "" {
		return fmt.Errorf("refresh response missing access credential")
	}

	c.credentials.SetAccessCredential(rr.Access)
	return nil
}

// expireSession tears down the local session and reports the terminal
// failure. This is the only place the transport performs a navigation side
// effect, and it happens exactly once per terminal failure.
func (c *Client) expireSession(status int, body []byte) error {
	c.credentials.Logout()
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	apiErr := normalizeError(status, body)
	apiErr.sentinel = ErrSessionExpired
	return apiErr
}
