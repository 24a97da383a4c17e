// package server exposes the catalog integration over HTTP: the browser-facing
// OAuth flow on /auth and the discovery pipelines on /api.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/soundshelf/soundshelf/internal/auth"
	"github.com/soundshelf/soundshelf/internal/discover"
	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
)

// Server wires the auth manager, catalog client, and discovery pipelines into
// an HTTP handler. Sessions live in signed cookies, so the server holds no
// per-user state.
type Server struct {
	cfg      *shared.Config
	manager  *auth.Manager
	client   *spotify.Client
	discover *discover.Service
	logger   *log.Logger
	secure   bool
}

// New creates a Server. secure marks session cookies Secure; leave it off for
// plain-HTTP development.
func New(cfg *shared.Config, manager *auth.Manager, client *spotify.Client, svc *discover.Service, logger *log.Logger, secure bool) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Server{
		cfg:      cfg,
		manager:  manager,
		client:   client,
		discover: svc,
		logger:   logger,
		secure:   secure,
	}
}

// store builds the request-scoped cookie session store.
func (s *Server) store(w http.ResponseWriter, r *http.Request) *cookieStore {
	return newCookieStore(w, r, s.cfg.Server.CookieSecret, s.secure)
}

// fetcher binds the catalog client to the request's session.
func (s *Server) fetcher(w http.ResponseWriter, r *http.Request) spotify.Fetcher {
	return s.client.Bound(s.store(w, r))
}

// Router assembles the route tree and middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		// The token endpoints are the brute-force surface; keep them slow.
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Get("/login", s.handleLogin)
		r.Get("/callback", s.handleCallback)
		r.Post("/disconnect", s.handleDisconnect)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(60, time.Minute))
		r.Get("/profile", s.handleProfile)
		r.Get("/status", s.handleStatus)
		r.Get("/new-releases", s.handleNewReleases)
		r.Get("/trending", s.handleTrending)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/search", s.handleSearch)
	})

	return r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Infof("listening at %v", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
		return err
	}
	return nil
}

// requestLogger logs one line per request after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// writeJSON writes v as the response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes a structured error body.
func (s *Server) writeError(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	s.writeJSON(w, status, body)
}
