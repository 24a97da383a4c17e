package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/soundshelf/soundshelf/internal/discover"
	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
)

func isDebug(r *http.Request) bool {
	return r.URL.Query().Get("debug") == "1"
}

// handleLogin starts the authorization-code flow. The PKCE verifier and state
// are parked in short-lived cookies for the callback; the client is sent to
// the account service's consent page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	login, err := s.manager.BeginLogin()
	if err != nil {
		s.logger.Error("failed to begin login", "error", err)
		s.writeError(w, http.StatusInternalServerError, "login unavailable", map[string]any{"detail": err.Error()})
		return
	}

	store := s.store(w, r)
	store.setLogin(login.Verifier, login.State)

	if isDebug(r) {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"redirect_uri":      s.cfg.Credentials.Spotify.RedirectURI,
			"client_id_present": s.cfg.Credentials.Spotify.ClientID != "",
			"scopes":            s.cfg.Credentials.Spotify.Scopes,
			"authorize_url":     login.AuthorizeURL,
		})
		return
	}

	http.Redirect(w, r, login.AuthorizeURL, http.StatusFound)
}

// handleCallback finishes the authorization-code flow: it checks the state
// against the login cookie, redeems the code with the parked verifier, and
// persists the session.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if errParam := query.Get("error"); errParam != "" {
		s.writeError(w, http.StatusBadRequest, "authorization_denied", map[string]any{"detail": errParam})
		return
	}

	store := s.store(w, r)
	verifier, wantState := store.readLogin()
	store.clearLogin()
	if verifier == "" {
		// Clients that cannot carry cookies may hand the verifier back.
		verifier = query.Get("v")
	}

	if code == "" || verifier == "" {
		s.writeError(w, http.StatusBadRequest, "missing_code_or_verifier", map[string]any{
			"code":     code != "",
			"verifier": verifier != "",
		})
		return
	}
	if wantState == "" || state != wantState {
		s.writeError(w, http.StatusBadRequest, "state_mismatch", nil)
		return
	}

	if _, err := s.manager.ExchangeCode(r.Context(), store, code, verifier); err != nil {
		s.logger.Error("code exchange failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "token_exchange_failed", map[string]any{"detail": err.Error()})
		return
	}

	if isDebug(r) {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "wrote_session": true, "state_received": state})
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleDisconnect drops the session and legacy cookies.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	before, _ := store.Read()
	store.Clear()
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "before": before != nil, "after": false})
}

// handleProfile proxies the connected user's profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	session, err := s.manager.EnsureAccessToken(r.Context(), store)
	if err != nil || session == nil {
		s.writeError(w, http.StatusUnauthorized, "Not connected", nil)
		return
	}

	f := s.client.Bound(store)
	rsp, err := f.AsUser(r.Context(), "/v1/me")
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "profile unavailable", map[string]any{"detail": err.Error()})
		return
	}
	if !rsp.OK() {
		s.writeError(w, rsp.Status, "profile rejected", map[string]any{"body": string(rsp.Body)})
		return
	}

	var me spotify.User
	if err := rsp.JSON(&me); err != nil {
		s.writeError(w, http.StatusBadGateway, "malformed profile", nil)
		return
	}

	if isDebug(r) {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"me":   me,
			"diag": map[string]any{"used_token": "session.access_token", "expires_at": session.ExpiresAt},
		})
		return
	}
	s.writeJSON(w, http.StatusOK, me)
}

// handleStatus reports both credential paths so a misconfigured deployment is
// diagnosable from one call.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	store := s.store(w, r)
	raw, _ := store.Read()
	ensured, _ := s.manager.EnsureAccessToken(r.Context(), store)

	f := s.client.Bound(store)

	appOK := false
	if rsp, err := f.AsApp(r.Context(), "/v1/browse/new-releases?limit=1"); err == nil {
		appOK = rsp.OK()
	}

	meStatus := 0
	var me *spotify.User
	if ensured != nil {
		if rsp, err := f.AsUser(r.Context(), "/v1/me"); err == nil {
			meStatus = rsp.Status
			if rsp.OK() {
				var u spotify.User
				if rsp.JSON(&u) == nil {
					me = &u
				}
			}
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"has_session":  raw != nil,
		"ensured":      ensured != nil,
		"app_token_ok": appOK,
		"me_status":    meStatus,
		"me":           me,
	})
}

// handleNewReleases lists fresh albums, preferring the connected user's
// market.
func (s *Server) handleNewReleases(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	limit := queryInt(r, "limit", 20)

	payload, err := s.discover.NewReleases(r.Context(), s.fetcher(w, r), country, limit)
	if err != nil {
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleTrending resolves the market (query, then profile country, then CA)
// and returns the market's top-list albums.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	f := s.fetcher(w, r)

	market := strings.ToUpper(r.URL.Query().Get("market"))
	if market == "" {
		if rsp, err := f.AsUser(r.Context(), "/v1/me"); err == nil && rsp.OK() {
			var me spotify.User
			if rsp.JSON(&me) == nil && me.Country != "" {
				market = strings.ToUpper(me.Country)
			}
		}
	}
	if market == "" {
		market = "CA"
	}

	s.writeJSON(w, http.StatusOK, s.discover.Trending(r.Context(), f, market, isDebug(r)))
}

// handleRecommendations requires a connected user; the payload is keyed to
// their identity and market.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	f := s.fetcher(w, r)

	rsp, err := f.AsUser(r.Context(), "/v1/me")
	if err != nil || !rsp.OK() {
		extra := map[string]any{}
		if err == nil {
			extra["status"] = rsp.Status
		}
		s.writeError(w, http.StatusUnauthorized, "Not connected", extra)
		return
	}

	var me spotify.User
	if err := rsp.JSON(&me); err != nil {
		s.writeError(w, http.StatusBadGateway, "malformed profile", nil)
		return
	}

	userID := me.ID
	if userID == "" {
		userID = "unknown"
	}
	market := strings.ToUpper(me.Country)
	if market == "" {
		market = "US"
	}

	s.writeJSON(w, http.StatusOK, s.discover.Recommendations(r.Context(), f, userID, market, isDebug(r)))
}

// handleSearch runs the ranked album search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := query.Get("q")
	limit := queryInt(r, "limit", 10)
	market := query.Get("market")
	if market == "" {
		market = "US"
	}

	payload, err := s.discover.Search(r.Context(), s.fetcher(w, r), q, limit, market, isDebug(r))
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, "missing q", nil)
			return
		}
		s.writeUpstreamError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// writeUpstreamError maps pipeline failures onto HTTP statuses, passing an
// upstream rejection's status through.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	var ue *discover.UpstreamError
	if errors.As(err, &ue) {
		s.writeError(w, ue.Status, "upstream rejected request", map[string]any{"body": ue.Body})
		return
	}
	s.logger.Error("pipeline failed", "error", err)
	s.writeError(w, http.StatusBadGateway, "upstream unavailable", nil)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
