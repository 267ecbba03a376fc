package authapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Backend route paths
const (
	PathLogin           = "/auth/login"
	PathRestoreSession  = "/auth/session"
	PathRefresh         = "/auth/refresh"
	PathLogout          = "/auth/logout"
	PathSwitchWorkspace = "/workspaces/switch"

	headerRequestID = "X-Request-ID"
	userAgent       = "go-console-session/1.0"
)

// HTTPClient talks to the commerce backend over HTTP. Its cookie jar holds the
// httpOnly refresh cookie between calls.
type HTTPClient struct {
	resty       *resty.Client
	tokenSource oauth2.TokenSource
	verifier    *oidc.IDTokenVerifier
}

var _ API = (*HTTPClient)(nil)

type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout     time.Duration
	retries     int
	tokenSource oauth2.TokenSource
	verifier    *oidc.IDTokenVerifier
	jar         http.CookieJar
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithRetries sets how many times transient failures (network errors, 5xx) are retried
func WithRetries(retries int) ClientOption {
	return func(o *clientOptions) {
		o.retries = retries
	}
}

// WithTokenSource attaches the current access token to workspace switch calls
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(o *clientOptions) {
		o.tokenSource = ts
	}
}

// WithIDTokenVerifier verifies id_tokens returned on login and fills the user from their claims
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) ClientOption {
	return func(o *clientOptions) {
		o.verifier = v
	}
}

func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(o *clientOptions) {
		o.jar = jar
	}
}

func NewHTTPClient(baseURL string, options ...ClientOption) (*HTTPClient, error) {
	o := clientOptions{timeout: 15 * time.Second, retries: 2}
	for _, opt := range options {
		opt(&o)
	}

	if o.jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("[NewHTTPClient] cookie jar: %w", err)
		}
		o.jar = jar
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = o.retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	httpClient := retryClient.StandardClient()
	httpClient.Jar = o.jar

	restyClient := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetTimeout(o.timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		resty:       restyClient,
		tokenSource: o.tokenSource,
		verifier:    o.verifier,
	}, nil
}

// NewOIDCVerifier discovers the issuer and returns a verifier for id_tokens issued to clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCVerifier] failed to create OIDC provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: clientID}), nil
}

// SetTokenSource late-binds the token source; the credential store is usually built after the client.
func (c *HTTPClient) SetTokenSource(ts oauth2.TokenSource) {
	c.tokenSource = ts
}

func (c *HTTPClient) request(ctx context.Context) *resty.Request {
	return c.resty.R().
		SetContext(ctx).
		SetHeader(headerRequestID, uuid.New().String())
}

func (c *HTTPClient) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	var out SessionResponse
	resp, err := c.request(ctx).SetBody(req).SetResult(&out).SetError(&out).Post(PathLogin)
	if err != nil {
		return nil, fmt.Errorf("[HTTPClient Login] %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return nil, fmt.Errorf("[HTTPClient Login] %w: %s", apperrors.ErrInvalidCredentials, out.Error)
	}
	if resp.IsError() || !out.Success || out.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("[HTTPClient Login] status %d: %s", resp.StatusCode(), out.Error)
	}

	if c.verifier != nil && out.Tokens.IDToken != "" {
		user, err := c.verifyIDToken(ctx, out.Tokens.IDToken)
		if err != nil {
			return nil, fmt.Errorf("[HTTPClient Login] %w", err)
		}
		out.User = user
	}
	return &out, nil
}

func (c *HTTPClient) verifyIDToken(ctx context.Context, rawIDToken string) (User, error) {
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return User{}, fmt.Errorf("%w: id token verification failed: %v", apperrors.ErrMalformedToken, err)
	}
	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return User{}, fmt.Errorf("%w: failed to extract claims: %v", apperrors.ErrMalformedToken, err)
	}
	return User{ID: claims.Sub, Email: claims.Email, Name: claims.Name}, nil
}

func (c *HTTPClient) RestoreSession(ctx context.Context) (*SessionResponse, error) {
	var out SessionResponse
	resp, err := c.request(ctx).SetResult(&out).SetError(&out).Post(PathRestoreSession)
	if err != nil {
		return nil, fmt.Errorf("[HTTPClient RestoreSession] %w: %v", apperrors.ErrSessionRestoreFailed, err)
	}
	if resp.IsError() || !out.Success || out.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("[HTTPClient RestoreSession] %w: status %d %s", apperrors.ErrSessionRestoreFailed, resp.StatusCode(), out.Error)
	}
	return &out, nil
}

func (c *HTTPClient) Refresh(ctx context.Context, workspaceID string) (*TokenSet, error) {
	var out SessionResponse
	resp, err := c.request(ctx).
		SetBody(refreshRequest{WorkspaceID: workspaceID}).
		SetResult(&out).
		SetError(&out).
		Post(PathRefresh)
	if err != nil {
		return nil, fmt.Errorf("[HTTPClient Refresh] %w: %v", apperrors.ErrRefreshFailed, err)
	}
	if resp.IsError() || out.Tokens.AccessToken == "" {
		return nil, fmt.Errorf("[HTTPClient Refresh] %w: status %d %s", apperrors.ErrRefreshFailed, resp.StatusCode(), out.Error)
	}
	return &out.Tokens, nil
}

func (c *HTTPClient) SwitchWorkspace(ctx context.Context, workspaceID string) (*SwitchResponse, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("[HTTPClient SwitchWorkspace] %w: workspace id is required", apperrors.ErrInvalidRequest)
	}

	req := c.request(ctx).SetBody(switchRequest{WorkspaceID: workspaceID})
	if c.tokenSource != nil {
		if tok, err := c.tokenSource.Token(); err == nil {
			req.SetAuthToken(tok.AccessToken)
		}
	}

	var out SwitchResponse
	resp, err := req.SetResult(&out).SetError(&out).Post(PathSwitchWorkspace)
	if err != nil {
		return nil, fmt.Errorf("[HTTPClient SwitchWorkspace] %w: %v", apperrors.ErrWorkspaceSwitchFailed, err)
	}
	if resp.IsError() || !out.Success {
		return nil, fmt.Errorf("[HTTPClient SwitchWorkspace] %w: status %d %s", apperrors.ErrWorkspaceSwitchFailed, resp.StatusCode(), out.Error)
	}
	return &out, nil
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	resp, err := c.request(ctx).Post(PathLogout)
	if err != nil {
		return fmt.Errorf("[HTTPClient Logout] %w", err)
	}
	if resp.IsError() {
		log.Warn().Int("status", resp.StatusCode()).Msg("backend logout returned an error status")
		return fmt.Errorf("[HTTPClient Logout] status %d", resp.StatusCode())
	}
	return nil
}
