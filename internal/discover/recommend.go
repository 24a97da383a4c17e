package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/soundshelf/soundshelf/internal/spotify"
)

// RecommendationsPayload is the /api/recommendations response body.
//
// Fallback names the degraded source when the recommendation endpoint could
// not be used; Diag carries the decision trace on debug requests only.
type RecommendationsPayload struct {
	Albums   []Album `json:"albums"`
	Market   string  `json:"market"`
	Fallback string  `json:"_fallback,omitempty"`
	Diag     *Trace  `json:"diag,omitempty"`
}

// Recommendations produces personalized album recommendations for the given
// user and market.
//
// Seeds are gathered from the user's listening data, then the upstream
// recommendation endpoint is queried with the user token, retried with the
// application token on 401, and finally replaced by artist-discography or
// top-tracks fallbacks when the endpoint is unavailable. Successful results
// are cached per user and market for cacheTTL; top-tracks fallbacks are
// never cached. debug bypasses the cache and attaches the trace.
func (s *Service) Recommendations(ctx context.Context, f spotify.Fetcher, userID, market string, debug bool) *RecommendationsPayload {
	key := fmt.Sprintf("recs:%s:%s", userID, market)
	if !debug {
		if v, ok := s.cache.Get(key); ok {
			if payload, ok := v.(*RecommendationsPayload); ok {
				return payload
			}
		}
	}

	trace := newTrace()

	trace.step("seeds")
	seed := s.gatherSeeds(ctx, f, market, trace)
	trace.Seed = &seed

	if seed.total() == 0 {
		trace.step("no-seeds-fallback")
		return s.topTracksFallback(ctx, f, market, trace, debug)
	}

	params := url.Values{}
	params.Set("limit", "100")
	params.Set("market", market)
	if len(seed.ArtistIDs) > 0 {
		params.Set("seed_artists", strings.Join(seed.ArtistIDs, ","))
	}
	if len(seed.TrackIDs) > 0 {
		params.Set("seed_tracks", strings.Join(seed.TrackIDs, ","))
	}
	path := "/v1/recommendations?" + params.Encode()

	trace.step("recommendations")
	rsp, err := f.AsUser(ctx, path)
	if err != nil || rsp.Status == 401 {
		if err != nil {
			trace.fail("recommendations(user)", err)
		} else {
			trace.reject("recommendations(user)", rsp)
		}
		trace.step("recommendations-app-retry")
		rsp, err = f.AsApp(ctx, path)
	}

	if err != nil || !rsp.OK() {
		if err != nil {
			trace.fail("recommendations(final)", err)
		} else {
			trace.reject("recommendations(final)", rsp)
		}

		trace.step("artist-albums-fallback")
		albums := s.artistAlbumsFallback(ctx, f, seed.ArtistIDs, market, trace)
		if len(albums) > 0 {
			payload := &RecommendationsPayload{Albums: albums, Market: market, Fallback: "artist-albums"}
			if !debug {
				s.cache.Set(key, payload, cacheTTL)
			}
			return attachTrace(payload, trace, debug)
		}
		return s.topTracksFallback(ctx, f, market, trace, debug)
	}

	var recs spotify.RecommendationsResponse
	if err := rsp.JSON(&recs); err != nil {
		trace.fail("recommendations(decode)", err)
		trace.step("fallback-top-tracks")
		return s.topTracksFallback(ctx, f, market, trace, debug)
	}

	albums := capSlice(dedupeAlbums(trackAlbums(recs.Tracks)), 40)
	payload := &RecommendationsPayload{Albums: mapAlbums(albums), Market: market}
	if !debug {
		s.cache.Set(key, payload, cacheTTL)
	}
	return attachTrace(payload, trace, debug)
}

// topTracksFallback builds albums from the user's short-term top tracks.
// Never cached: it is the emptiest signal and should heal on the next call.
func (s *Service) topTracksFallback(ctx context.Context, f spotify.Fetcher, market string, trace *Trace, debug bool) *RecommendationsPayload {
	var page spotify.TrackPage
	s.userJSON(ctx, f, "/v1/me/top/tracks?time_range=short_term&limit=50", &page, trace, "top-tracks-fallback")

	albums := capSlice(dedupeAlbums(trackAlbums(page.Items)), 40)
	payload := &RecommendationsPayload{Albums: mapAlbums(albums), Market: market, Fallback: "top-tracks"}
	return attachTrace(payload, trace, debug)
}

// artistAlbumsFallback collects recent full-length releases from the first
// eight seed artists, newest first, on the application token.
func (s *Service) artistAlbumsFallback(ctx context.Context, f spotify.Fetcher, artistIDs []string, market string, trace *Trace) []Album {
	var collected []spotify.Album
	for _, id := range capSlice(artistIDs, 8) {
		path := fmt.Sprintf("/v1/artists/%s/albums?include_groups=album&market=%s&limit=10", id, url.QueryEscape(market))
		var page spotify.AlbumPage
		if !s.appJSON(ctx, f, path, &page, trace, "artist-albums") {
			continue
		}
		collected = append(collected, page.Items...)
	}

	uniq := dedupeAlbums(collected)
	sortByReleaseDesc(uniq)
	return mapAlbums(capSlice(uniq, 40))
}

// trackAlbums extracts each track's parent album, in order, skipping tracks
// without one.
func trackAlbums(tracks []spotify.Track) []spotify.Album {
	var out []spotify.Album
	for _, t := range tracks {
		if t.Album != nil {
			out = append(out, *t.Album)
		}
	}
	return out
}

func attachTrace(p *RecommendationsPayload, trace *Trace, debug bool) *RecommendationsPayload {
	if debug {
		p.Diag = trace
	}
	return p
}
