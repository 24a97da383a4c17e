// package auth owns the credential and session lifecycle for the catalog
// integration: the per-user authorization-code session (PKCE, rotating refresh
// token) and the shared application-level client-credentials token.
package auth

import "time"

// expirySkew is how close to expiry a session may get before a refresh is due.
const expirySkew = 300 // seconds

// Session is a user authorization session as persisted in the session store.
//
// ExpiresAt is epoch seconds. The session is owned exclusively by [Manager]:
// it is created by the code exchange, replaced by refresh, and destroyed on
// disconnect or irrecoverable refresh failure.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Scope        string `json:"scope,omitempty"`
}

// Expiring reports whether the session is unusable or within the refresh
// window (fewer than 300 seconds remaining).
func (s *Session) Expiring(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	return now.Unix() > s.ExpiresAt-expirySkew
}

// SessionStore is the injected persistence capability for the opaque session
// blob. A web deployment satisfies it with a signed-cookie adapter; a CLI or
// daemon deployment with a sqlite-backed one.
//
// Read returns (nil, nil) when no session is stored.
type SessionStore interface {
	Read() (*Session, error)
	Write(*Session) error
	Clear() error
}

// LegacyStore is implemented by stores that may still hold the old unbundled
// access/refresh value pair. When found, the pair is adopted into a bundled
// session once and the legacy artifacts are removed.
type LegacyStore interface {
	ReadLegacy() (access, refresh string, ok bool)
	ClearLegacy()
}
