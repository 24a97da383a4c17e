package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soundshelf/soundshelf/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return err
	}

	if r.config.Server.CookieSecret == "" {
		r.logger.Warn("server.cookie_secret is empty, session cookies are signed with an empty key")
	}

	srv := server.New(r.config, r.manager, r.client, r.discover, r.logger, cmd.Bool("secure-cookies"))

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(runCtx)
}
