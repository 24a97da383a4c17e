package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/soundshelf/soundshelf/internal/auth"
	"github.com/soundshelf/soundshelf/internal/discover"
	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
)

// newTestServer builds a Server against fake accounts and catalog upstreams.
func newTestServer(t *testing.T, catalog http.HandlerFunc) (*Server, func()) {
	t.Helper()

	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "client_credentials":
			fmt.Fprint(w, `{"access_token":"app_tok","token_type":"Bearer","expires_in":3600}`)
		case "authorization_code":
			fmt.Fprint(w, `{"access_token":"user_tok","refresh_token":"refresh_tok","expires_in":3600,"scope":"user-read-email"}`)
		case "refresh_token":
			fmt.Fprint(w, `{"access_token":"refreshed_tok","expires_in":3600}`)
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		}
	}))

	if catalog == nil {
		catalog = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"not scripted"}`, http.StatusNotFound)
		}
	}
	api := httptest.NewServer(catalog)

	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "test_client_id"
	cfg.Credentials.Spotify.ClientSecret = "test_client_secret"
	cfg.Credentials.Spotify.RedirectURI = "http://127.0.0.1:3000/auth/callback"
	cfg.Server.CookieSecret = testSecret

	manager := auth.NewManager(cfg.Credentials.Spotify, auth.Options{AccountsURL: accounts.URL})
	client := spotify.NewClient(manager, spotify.ClientOptions{BaseURL: api.URL, RateLimit: 1000})
	svc := discover.NewService(nil, nil)

	srv := New(cfg, manager, client, svc, shared.NewLogger(nil), false)
	cleanup := func() {
		accounts.Close()
		api.Close()
	}
	return srv, cleanup
}

func freshSession() *auth.Session {
	return &auth.Session{
		AccessToken:  "user_tok",
		RefreshToken: "refresh_tok",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHandleLogin(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	router := srv.Router()

	t.Run("Redirects To Consent Page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/login", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatal(err)
		}
		q := loc.Query()
		if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
			t.Errorf("authorize URL missing PKCE params: %v", loc)
		}

		var names []string
		for _, c := range rec.Result().Cookies() {
			names = append(names, c.Name)
		}
		joined := strings.Join(names, ",")
		if !strings.Contains(joined, pkceCookie) || !strings.Contains(joined, stateCookie) {
			t.Errorf("login cookies not set: %v", names)
		}
	})

	t.Run("Debug Returns The URL Instead", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/login?debug=1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["authorize_url"] == "" {
			t.Errorf("body = %v", body)
		}
	})
}

func TestHandleCallback(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	router := srv.Router()

	withLogin := func(target string) *http.Request {
		req := httptest.NewRequest("GET", target, nil)
		req.AddCookie(&http.Cookie{Name: pkceCookie, Value: "the-verifier"})
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: "the-state"})
		return req
	}

	t.Run("Success Writes Session And Redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withLogin("/auth/callback?code=abc&state=the-state"))

		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
			t.Fatalf("status = %d location = %q body %s", rec.Code, rec.Header().Get("Location"), rec.Body.String())
		}

		var sess *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == sessionCookie && c.Value != "" {
				sess = c
			}
		}
		if sess == nil {
			t.Fatal("no session cookie written")
		}

		// The written cookie must verify and carry the exchanged tokens.
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(sess)
		store := newCookieStore(httptest.NewRecorder(), req, testSecret, false)
		got, _ := store.Read()
		if got == nil || got.AccessToken != "user_tok" || got.RefreshToken != "refresh_tok" {
			t.Errorf("session = %+v", got)
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withLogin("/auth/callback?code=abc&state=wrong"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "state_mismatch" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("Missing Verifier", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/callback?code=abc&state=s", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("Provider Denied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withLogin("/auth/callback?error=access_denied&state=the-state"))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "authorization_denied" {
			t.Errorf("body = %v", body)
		}
	})
}

func TestHandleDisconnect(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	router := srv.Router()

	req := httptest.NewRequest("POST", "/auth/disconnect", nil)
	req.AddCookie(writeSessionCookie(t, freshSession()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["before"] != true || body["after"] != false {
		t.Errorf("body = %v", body)
	}

	expired := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("session cookie not expired")
	}
}

func TestHandleProfile(t *testing.T) {
	t.Run("Anonymous Is 401", func(t *testing.T) {
		srv, cleanup := newTestServer(t, nil)
		defer cleanup()

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/profile", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "Not connected" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("Connected Returns The Profile", func(t *testing.T) {
		srv, cleanup := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/me" {
				fmt.Fprint(w, `{"id":"u1","display_name":"Test","country":"CA"}`)
				return
			}
			http.NotFound(w, r)
		})
		defer cleanup()

		req := httptest.NewRequest("GET", "/api/profile", nil)
		req.AddCookie(writeSessionCookie(t, freshSession()))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		if body := decodeBody(t, rec); body["id"] != "u1" || body["country"] != "CA" {
			t.Errorf("body = %v", body)
		}
	})
}

func TestHandleStatus(t *testing.T) {
	srv, cleanup := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/browse/new-releases"):
			fmt.Fprint(w, `{"albums":{"items":[]}}`)
		case r.URL.Path == "/v1/me":
			fmt.Fprint(w, `{"id":"u1","country":"CA"}`)
		default:
			http.NotFound(w, r)
		}
	})
	defer cleanup()

	t.Run("Anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

		body := decodeBody(t, rec)
		if body["has_session"] != false || body["ensured"] != false {
			t.Errorf("body = %v", body)
		}
		if body["app_token_ok"] != true {
			t.Errorf("app token probe should succeed: %v", body)
		}
	})

	t.Run("Connected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/status", nil)
		req.AddCookie(writeSessionCookie(t, freshSession()))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		body := decodeBody(t, rec)
		if body["has_session"] != true || body["ensured"] != true {
			t.Errorf("body = %v", body)
		}
		if body["me_status"] != float64(200) {
			t.Errorf("me_status = %v", body["me_status"])
		}
	})
}

func TestHandleNewReleases(t *testing.T) {
	srv, cleanup := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/browse/new-releases") {
			fmt.Fprint(w, `{"albums":{"items":[{"id":"al1","name":"one","artists":[{"name":"A"}]}]}}`)
			return
		}
		http.NotFound(w, r)
	})
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/new-releases?country=GB", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["market"] != "GB" || body["source"] != "app-token" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleRecommendationsRequiresUser(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/recommendations", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	t.Run("Missing Query", func(t *testing.T) {
		srv, cleanup := newTestServer(t, nil)
		defer cleanup()

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/search", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("Upstream Status Passes Through", func(t *testing.T) {
		srv, cleanup := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		})
		defer cleanup()

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=radiohead", nil))

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Ranked Results", func(t *testing.T) {
		srv, cleanup := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/v1/search") {
				fmt.Fprint(w, `{"albums":{"items":[{"id":"ex","name":"OK Computer","artists":[{"name":"Radiohead"}]}]}}`)
				return
			}
			http.NotFound(w, r)
		})
		defer cleanup()

		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/search?q=ok+computer", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		albums, _ := body["albums"].([]any)
		if len(albums) != 1 {
			t.Errorf("body = %v", body)
		}
	})
}
