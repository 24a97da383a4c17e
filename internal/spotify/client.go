package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/soundshelf/soundshelf/internal/auth"
	"github.com/soundshelf/soundshelf/internal/shared"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.spotify.com"

// Response is the outcome of one upstream call. Non-2xx responses are not
// errors at this layer; pipelines decide whether to retry with the alternate
// credential mode or degrade to a fallback.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the upstream answered 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNoData, err)
	}
	return nil
}

// Client is a thin wrapper over the catalog API that resolves the correct
// bearer token per call and rate-limits outbound requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	manager    *auth.Manager
	limiter    *rate.Limiter
	logger     *log.Logger
}

// ClientOptions configures a [Client]. Zero values select defaults.
type ClientOptions struct {
	BaseURL    string // catalog API base URL, override for tests
	HTTPClient *http.Client
	Logger     *log.Logger
	RateLimit  float64 // outbound requests per second (default 10)
}

// NewClient creates a Client that resolves tokens through the given manager.
func NewClient(manager *auth.Manager, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}

	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		manager:    manager,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:     opts.Logger,
	}
}

// AsUser performs a GET with the user session's bearer token, refreshing the
// session first when needed.
//
// Returns [shared.ErrNotAuthenticated] when no usable session exists, so
// callers can branch to a 401 outcome without treating it as a failure.
func (c *Client) AsUser(ctx context.Context, store auth.SessionStore, pathOrURL string) (*Response, error) {
	s, err := c.manager.EnsureAccessToken(ctx, store)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return c.do(ctx, pathOrURL, s.AccessToken)
}

// AsApp performs a GET with the shared application token. This mode carries no
// user identity.
func (c *Client) AsApp(ctx context.Context, pathOrURL string) (*Response, error) {
	token, err := c.manager.AppToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, pathOrURL, token)
}

// do issues one rate-limited GET. pathOrURL may be an absolute URL (pagination
// cursors) or a path like "/v1/me".
func (c *Client) do(ctx context.Context, pathOrURL, token string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	apiURL := pathOrURL
	if !strings.HasPrefix(pathOrURL, "http") {
		apiURL = c.baseURL + pathOrURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if !isOK(rsp.StatusCode) {
		c.logger.Debug("upstream rejected request", "url", apiURL, "status", rsp.StatusCode)
	}

	return &Response{Status: rsp.StatusCode, Header: rsp.Header, Body: body}, nil
}

func isOK(status int) bool {
	return status >= 200 && status < 300
}

// Fetcher is the request-scoped view of the client handed to the pipelines:
// user-mode calls bound to one session store, app-mode calls shared.
type Fetcher interface {
	AsUser(ctx context.Context, pathOrURL string) (*Response, error)
	AsApp(ctx context.Context, pathOrURL string) (*Response, error)
}

type boundClient struct {
	client *Client
	store  auth.SessionStore
}

// Bound binds the client to one request's session store, yielding a [Fetcher].
func (c *Client) Bound(store auth.SessionStore) Fetcher {
	return boundClient{client: c, store: store}
}

func (b boundClient) AsUser(ctx context.Context, pathOrURL string) (*Response, error) {
	return b.client.AsUser(ctx, b.store, pathOrURL)
}

func (b boundClient) AsApp(ctx context.Context, pathOrURL string) (*Response, error) {
	return b.client.AsApp(ctx, pathOrURL)
}
