package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/soundshelf/soundshelf/internal/shared"
	"golang.org/x/oauth2"
)

const defaultAccountsURL = "https://accounts.spotify.com"

// appTokenSkew is how close to expiry the shared app token may get before it
// is exchanged again.
const appTokenSkew = 60 * time.Second

// Manager drives both authorization flows against the accounts service.
//
// The user flow is a public PKCE client (no secret); the app flow exchanges
// client id + secret for a shared token held in process memory.
type Manager struct {
	cfg         shared.SpotifyConfig
	oauth       *oauth2.Config
	httpClient  *http.Client
	logger      *log.Logger
	accountsURL string

	mu        sync.Mutex
	appToken  string
	appExpiry time.Time
}

// Options configures a [Manager]. Zero values select defaults.
type Options struct {
	HTTPClient  *http.Client
	Logger      *log.Logger
	AccountsURL string // accounts service base URL, override for tests
}

// NewManager creates a Manager for the given Spotify application credentials.
func NewManager(cfg shared.SpotifyConfig, opts Options) *Manager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.AccountsURL == "" {
		opts.AccountsURL = defaultAccountsURL
	}

	oauthCfg := &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      strings.Fields(cfg.Scopes),
		Endpoint: oauth2.Endpoint{
			AuthURL:  opts.AccountsURL + "/authorize",
			TokenURL: opts.AccountsURL + "/api/token",
		},
	}

	return &Manager{
		cfg:         cfg,
		oauth:       oauthCfg,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		accountsURL: opts.AccountsURL,
	}
}

// Login holds the artifacts of an initiated authorization flow. Verifier and
// State must be retrievable at exchange time; stashing them (client side or in
// a short-lived cookie) is the caller's concern.
type Login struct {
	Verifier     string
	State        string
	AuthorizeURL string
}

// BeginLogin generates PKCE material and the authorization URL.
//
// The verifier is 64 random bytes and the state 16, both base64url without
// padding; the challenge is the SHA-256 digest of the verifier.
func (m *Manager) BeginLogin() (*Login, error) {
	if m.cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingConfig)
	}
	if m.cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: spotify redirect_uri", shared.ErrMissingConfig)
	}

	verifier, err := randB64URL(64)
	if err != nil {
		return nil, err
	}
	state, err := randB64URL(16)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])

	authorizeURL := m.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	)

	return &Login{Verifier: verifier, State: state, AuthorizeURL: authorizeURL}, nil
}

// ExchangeCode exchanges an authorization code + PKCE verifier for a session
// and persists it. Failure surfaces the upstream status and body and mutates
// no persisted state.
func (m *Manager) ExchangeCode(ctx context.Context, store SessionStore, code, verifier string) (*Session, error) {
	if m.cfg.RedirectURI == "" {
		return nil, fmt.Errorf("%w: spotify redirect_uri", shared.ErrMissingConfig)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	tok, err := m.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) {
			return nil, fmt.Errorf("%w: status %d: %s", shared.ErrExchangeFailed, rErr.Response.StatusCode, rErr.Body)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", shared.ErrExchangeFailed)
	}

	expiresAt := tok.Expiry.Unix()
	if tok.Expiry.IsZero() {
		expiresAt = time.Now().Unix() + 3600
	}

	scope, _ := tok.Extra("scope").(string)
	session := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		Scope:        scope,
	}

	if err := store.Write(session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return session, nil
}

// RefreshIfNeeded refreshes the session when it is expiring and a refresh
// token is available; otherwise it returns the input unchanged.
//
// On refresh failure the persisted session is cleared and
// [shared.ErrRefreshFailed] returned; callers must treat that as disconnected
// rather than retrying. The issuer may rotate the refresh token: the new one
// replaces the old only when the response carries one.
func (m *Manager) RefreshIfNeeded(ctx context.Context, store SessionStore, s *Session) (*Session, error) {
	if s == nil || s.RefreshToken == "" || !s.Expiring(time.Now()) {
		return s, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.RefreshToken},
		"client_id":     {m.cfg.ClientID}, // public PKCE client, no secret
	}

	status, body, err := m.postToken(ctx, form, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if status < 200 || status >= 300 {
		store.Clear()
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrRefreshFailed, status, body)
	}

	var data tokenResponse
	if err := json.Unmarshal(body, &data); err != nil || data.AccessToken == "" {
		store.Clear()
		return nil, fmt.Errorf("%w: malformed token response", shared.ErrRefreshFailed)
	}

	next := &Session{
		AccessToken:  data.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    time.Now().Unix() + data.expiresInOrDefault(),
		Scope:        s.Scope,
	}
	if data.RefreshToken != "" {
		next.RefreshToken = data.RefreshToken
	}
	if data.Scope != "" {
		next.Scope = data.Scope
	}

	if err := store.Write(next); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed session: %w", err)
	}

	return next, nil
}

// EnsureAccessToken loads a usable session, adopting a legacy unbundled token
// pair once if present and refreshing when needed.
//
// It returns (nil, nil) when no session can be obtained, including refresh
// failure, so callers present an unauthenticated outcome instead of an error.
func (m *Manager) EnsureAccessToken(ctx context.Context, store SessionStore) (*Session, error) {
	s, err := store.Read()
	if err != nil {
		return nil, err
	}

	if s == nil {
		s = m.adoptLegacy(store)
	}
	if s == nil {
		return nil, nil
	}

	refreshed, err := m.RefreshIfNeeded(ctx, store, s)
	if err != nil {
		m.logger.Debug("session refresh failed, treating as disconnected", "err", err)
		return nil, nil
	}
	return refreshed, nil
}

// adoptLegacy wraps a legacy unbundled token pair into a session, persists it,
// and removes the legacy artifacts. The expiry is unknown, so assume just
// under an hour.
func (m *Manager) adoptLegacy(store SessionStore) *Session {
	ls, ok := store.(LegacyStore)
	if !ok {
		return nil
	}
	access, refresh, found := ls.ReadLegacy()
	if !found {
		return nil
	}

	s := &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Unix() + 3500,
	}
	if err := store.Write(s); err != nil {
		m.logger.Warn("failed to persist adopted legacy session", "err", err)
		return nil
	}
	ls.ClearLegacy()
	return s
}

// AppToken returns the shared application token, exchanging client
// credentials when none is cached or fewer than 60 seconds remain.
//
// This token carries no user identity and must never be used for endpoints
// that require one.
func (m *Manager) AppToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appToken != "" && time.Until(m.appExpiry) > appTokenSkew {
		return m.appToken, nil
	}

	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
		return "", fmt.Errorf("%w: spotify client_id / client_secret", shared.ErrMissingCredentials)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(m.cfg.ClientID + ":" + m.cfg.ClientSecret))
	form := url.Values{"grant_type": {"client_credentials"}}

	status, body, err := m.postToken(ctx, form, "Basic "+basic)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAppToken, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", shared.ErrAppToken, status, body)
	}

	var data tokenResponse
	if err := json.Unmarshal(body, &data); err != nil || data.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token response", shared.ErrAppToken)
	}

	m.appToken = data.AccessToken
	m.appExpiry = time.Now().Add(time.Duration(data.expiresInOrDefault()) * time.Second)
	return m.appToken, nil
}

// postToken POSTs a form to the token endpoint and returns status and body.
func (m *Manager) postToken(ctx context.Context, form url.Values, authorization string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rsp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return rsp.StatusCode, nil, err
	}
	return rsp.StatusCode, body, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (t tokenResponse) expiresInOrDefault() int64 {
	if t.ExpiresIn <= 0 {
		return 3600
	}
	return t.ExpiresIn
}

func randB64URL(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
