package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
	"github.com/urfave/cli/v3"
)

// boundFetcher opens the sqlite session store and binds the client to it, so
// one-shot commands run as the connected user when one exists. The returned
// closer releases the database.
func (r *Runner) boundFetcher(cmd *cli.Command) (spotify.Fetcher, func(), error) {
	if err := r.reloadConfig(cmd.String("config")); err != nil {
		return nil, nil, err
	}
	store, db, err := r.openSessionStore()
	if err != nil {
		return nil, nil, err
	}
	return r.client.Bound(store), func() { db.Close() }, nil
}

// Search runs the ranked album search and prints the results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: query argument required", shared.ErrMissingArgument)
	}

	f, done, err := r.boundFetcher(cmd)
	if err != nil {
		return err
	}
	defer done()

	payload, err := r.discover.Search(ctx, f, query, int(cmd.Int("limit")), cmd.String("market"), false)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(payload, cmd.Bool("pretty"))
	}

	r.writePlain("Albums for %q in %s:\n\n", query, payload.Market)
	r.writeAlbums(payload.Albums)
	return nil
}

// Trending prints the market's top-list albums.
func (r *Runner) Trending(ctx context.Context, cmd *cli.Command) error {
	f, done, err := r.boundFetcher(cmd)
	if err != nil {
		return err
	}
	defer done()

	payload := r.discover.Trending(ctx, f, cmd.String("market"), false)

	if cmd.Bool("json") {
		return r.writeJSON(payload, cmd.Bool("pretty"))
	}

	if len(payload.Albums) == 0 {
		r.writePlain("No trending albums found for %s\n", payload.Market)
		return nil
	}
	r.writePlain("Trending in %s:\n\n", payload.Market)
	r.writeAlbums(payload.Albums)
	return nil
}

// Releases prints fresh album releases.
func (r *Runner) Releases(ctx context.Context, cmd *cli.Command) error {
	f, done, err := r.boundFetcher(cmd)
	if err != nil {
		return err
	}
	defer done()

	payload, err := r.discover.NewReleases(ctx, f, cmd.String("country"), int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to list releases: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(payload, cmd.Bool("pretty"))
	}

	r.writePlain("New releases in %s (%s):\n\n", payload.Market, payload.Source)
	r.writeAlbums(payload.Albums)
	return nil
}

// Recommend prints personalized recommendations for the stored session.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	f, done, err := r.boundFetcher(cmd)
	if err != nil {
		return err
	}
	defer done()

	rsp, err := f.AsUser(ctx, "/v1/me")
	if err != nil || !rsp.OK() {
		return fmt.Errorf("%w: run auth login first", shared.ErrNotAuthenticated)
	}
	var me spotify.User
	if err := rsp.JSON(&me); err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	market := strings.ToUpper(me.Country)
	if market == "" {
		market = "US"
	}
	userID := me.ID
	if userID == "" {
		userID = "unknown"
	}

	payload := r.discover.Recommendations(ctx, f, userID, market, false)

	if cmd.Bool("json") {
		return r.writeJSON(payload, cmd.Bool("pretty"))
	}

	if payload.Fallback != "" {
		r.writePlain("(served from %s fallback)\n", payload.Fallback)
	}
	r.writePlain("Recommendations for %s in %s:\n\n", me.DisplayName, payload.Market)
	r.writeAlbums(payload.Albums)
	return nil
}
