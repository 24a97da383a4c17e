package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
)

// callbackResult carries the authorization code from the local callback
// handler back to the command.
type callbackResult struct {
	code string
	err  error
}

// AuthLogin runs the PKCE authorization flow with a local callback server and
// stores the resulting session in sqlite.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}

	store, db, err := r.openSessionStore()
	if err != nil {
		return err
	}
	defer db.Close()

	login, err := r.manager.BeginLogin()
	if err != nil {
		return fmt.Errorf("failed to begin login: %w", err)
	}

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			fmt.Fprint(w, "Authorization denied. You can close this window.")
			results <- callbackResult{err: fmt.Errorf("authorization denied: %s", errParam)}
			return
		}
		if q.Get("state") != login.State {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("state mismatch")}
			return
		}
		fmt.Fprint(w, "Connected. You can close this window.")
		results <- callbackResult{code: q.Get("code")}
	})

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{Addr: serverAddr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("waiting for authorization callback at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	r.writePlain("→ Open this URL in your browser:\n%s\n\n", login.AuthorizeURL)
	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result callbackResult
	select {
	case result = <-results:
	case err := <-serverErrors:
		return fmt.Errorf("callback server error: %w", err)
	case <-timeout.C:
		result.err = fmt.Errorf("authorization timed out after 2 minutes")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if result.err != nil {
		return result.err
	}
	if result.code == "" {
		return fmt.Errorf("no authorization code received")
	}

	session, err := r.manager.ExchangeCode(ctx, store, result.code, login.Verifier)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	r.writePlain("✓ Connected. Session stored in %s\n", r.config.Database.Path)
	if session.Scope != "" {
		r.writePlain("  Scopes: %s\n", session.Scope)
	}
	return nil
}

// AuthLogout drops the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}

	store, db, err := r.openSessionStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	r.writePlain("✓ Session cleared\n")
	return nil
}

// AuthStatus reports whether a usable session is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}

	store, db, err := r.openSessionStore()
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := r.manager.EnsureAccessToken(ctx, store)
	if err != nil {
		return err
	}
	if session == nil {
		r.writePlain("✗ Not connected\n")
		return nil
	}

	r.writePlain("✓ Connected (token expires at %s)\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}
