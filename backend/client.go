package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-backoffice-session/internal/errors"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"golang.org/x/oauth2"
)

// Endpoint paths
const (
	RouteLogin      = "/login"
	RouteRefresh    = "/refresh"
	RouteNavigation = "/navigation"

	RequestIDHeader = "X-Request-ID"
)

const (
	opLogin      = "login"
	opRefresh    = "refresh"
	opNavigation = "navigation"

	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 4096
)

// Client calls the delivery platform authentication and navigation endpoints.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	timeout     time.Duration
	tokenSource oauth2.TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client (transport, TLS, proxies).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTokenSource sets the source of bearer tokens for authenticated calls.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidRequest, "[NewClient] invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// WithTokenSource returns a copy of c that authenticates with ts.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	clone := *c
	clone.tokenSource = ts
	return &clone
}

// Login submits credentials. Failures unwrap to ErrAuthentication, and bad
// credentials additionally to ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, credentials Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, c.httpClient, opLogin, http.MethodPost, RouteLogin, credentials, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, &HTTPError{Op: opLogin, Kind: apperrors.ErrAuthentication, Err: errors.New("response is missing tokens")}
	}
	return &resp, nil
}

// Refresh exchanges the current pair for a new one. A refused exchange
// unwraps to ErrRefreshRejected.
func (c *Client) Refresh(ctx context.Context, expiredToken, refreshToken string) (*LoginResponse, error) {
	var resp LoginResponse
	body := RefreshRequest{ExpiredToken: expiredToken, RefreshToken: refreshToken}
	if err := c.do(ctx, c.httpClient, opRefresh, http.MethodPost, RouteRefresh, body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, &HTTPError{Op: opRefresh, Kind: apperrors.ErrRefreshRejected, Err: errors.New("response is missing tokens")}
	}
	return &resp, nil
}

// FetchNavigation returns the authoritative flat route list for the
// authenticated operator. Failures unwrap to ErrNavigationFetch.
func (c *Client) FetchNavigation(ctx context.Context) ([]navigation.Route, error) {
	if c.tokenSource == nil {
		return nil, &HTTPError{Op: opNavigation, Kind: apperrors.ErrNavigationFetch, Err: apperrors.ErrNotLoggedIn}
	}

	authCtx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	authClient := oauth2.NewClient(authCtx, c.tokenSource)

	var resp NavigationResponse
	if err := c.do(ctx, authClient, opNavigation, http.MethodGet, RouteNavigation, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Routes == nil {
		return []navigation.Route{}, nil
	}
	return resp.Routes, nil
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, op, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &HTTPError{Op: op, Kind: apperrors.ErrInvalidRequest, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return &HTTPError{Op: op, Kind: transportKind(op), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.New().String())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &HTTPError{Op: op, Kind: transportKind(op), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind, detail := classify(op, resp.StatusCode)
		return &HTTPError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
			Kind:       kind,
			Err:        detail,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Kind: transportKind(op), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBodyLen))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var er ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && (er.Message != "" || er.Error != "") {
		if er.Message != "" {
			return er.Message
		}
		return er.Error
	}
	return strings.TrimSpace(string(raw))
}
