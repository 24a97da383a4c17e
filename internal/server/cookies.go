package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/soundshelf/soundshelf/internal/auth"
)

const (
	sessionCookie       = "sp_session"
	legacyAccessCookie  = "sp_access"
	legacyRefreshCookie = "sp_refresh"
	pkceCookie          = "sp_pkce"
	stateCookie         = "sp_state"

	// sessionMaxAge keeps the session cookie for six months; the refresh token
	// inside it outlives the access token by far.
	sessionMaxAge = 60 * 60 * 24 * 180
	// loginMaxAge bounds the PKCE verifier and state cookies to one login
	// attempt window.
	loginMaxAge = 600
)

// cookieStore adapts one request's cookie jar to [auth.SessionStore] and
// [auth.LegacyStore]. The session payload is JSON, base64-encoded and signed
// with HMAC-SHA256 so a client cannot forge or tamper with it.
//
// A store is request-scoped: writes go to the response, reads prefer what was
// written during this request over the inbound cookie.
type cookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	secret []byte
	secure bool

	written *auth.Session
	cleared bool
}

func newCookieStore(w http.ResponseWriter, r *http.Request, secret string, secure bool) *cookieStore {
	return &cookieStore{w: w, r: r, secret: []byte(secret), secure: secure}
}

func (c *cookieStore) Read() (*auth.Session, error) {
	if c.cleared {
		return nil, nil
	}
	if c.written != nil {
		return c.written, nil
	}

	cookie, err := c.r.Cookie(sessionCookie)
	if err != nil {
		return nil, nil
	}
	payload, ok := c.verify(cookie.Value)
	if !ok {
		return nil, nil
	}

	var s auth.Session
	if err := json.Unmarshal(payload, &s); err != nil || s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

func (c *cookieStore) Write(s *auth.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	c.setCookie(sessionCookie, c.sign(payload), sessionMaxAge)
	c.written = s
	c.cleared = false
	return nil
}

func (c *cookieStore) Clear() error {
	c.setCookie(sessionCookie, "", -1)
	c.ClearLegacy()
	c.written = nil
	c.cleared = true
	return nil
}

func (c *cookieStore) ReadLegacy() (string, string, bool) {
	access, err := c.r.Cookie(legacyAccessCookie)
	if err != nil || access.Value == "" {
		return "", "", false
	}
	refresh := ""
	if rc, err := c.r.Cookie(legacyRefreshCookie); err == nil {
		refresh = rc.Value
	}
	return access.Value, refresh, true
}

func (c *cookieStore) ClearLegacy() {
	c.setCookie(legacyAccessCookie, "", -1)
	c.setCookie(legacyRefreshCookie, "", -1)
}

// setLogin stores the PKCE verifier and state for the pending authorization.
func (c *cookieStore) setLogin(verifier, state string) {
	c.setCookie(pkceCookie, verifier, loginMaxAge)
	c.setCookie(stateCookie, state, loginMaxAge)
}

// readLogin returns the pending verifier and state, if any.
func (c *cookieStore) readLogin() (verifier, state string) {
	if cookie, err := c.r.Cookie(pkceCookie); err == nil {
		verifier = cookie.Value
	}
	if cookie, err := c.r.Cookie(stateCookie); err == nil {
		state = cookie.Value
	}
	return verifier, state
}

// clearLogin drops the PKCE cookies once the exchange is settled.
func (c *cookieStore) clearLogin() {
	c.setCookie(pkceCookie, "", -1)
	c.setCookie(stateCookie, "", -1)
}

func (c *cookieStore) setCookie(name, value string, maxAge int) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sign encodes payload as base64url and appends its HMAC-SHA256 tag.
func (c *cookieStore) sign(payload []byte) string {
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return encoded + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify checks the tag and returns the decoded payload.
func (c *cookieStore) verify(value string) ([]byte, bool) {
	encoded, tag, ok := strings.Cut(value, ".")
	if !ok {
		return nil, false
	}
	want, err := base64.RawURLEncoding.DecodeString(tag)
	if err != nil {
		return nil, false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	if !hmac.Equal(mac.Sum(nil), want) {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return payload, true
}
