package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/soundshelf/soundshelf/internal/spotify"
)

// TrendingPayload is the /api/trending response body.
type TrendingPayload struct {
	Albums []Album `json:"albums"`
	Market string  `json:"market"`
	Diag   *Trace  `json:"diag,omitempty"`
}

// countryNames maps market codes to the spelled-out names the platform's
// editorial playlists carry in their titles.
var countryNames = map[string]string{
	"CA": "Canada",
	"US": "United States",
	"GB": "UK",
	"AU": "Australia",
	"NZ": "New Zealand",
}

func countryName(market string) string {
	if name, ok := countryNames[strings.ToUpper(market)]; ok {
		return name
	}
	return strings.ToUpper(market)
}

// topListCandidates returns the playlist names to look for, market-specific
// variants first, global fallbacks last.
func topListCandidates(market string) []string {
	name := countryName(market)
	return []string{
		"Top 50 - " + name,
		"Top 50 " + name,
		name + " Top 50",
		"Top 50 - Global",
		"Global Top 50",
		"Today's Top Hits",
	}
}

// Trending resolves the market's top-list playlist and returns the unique
// albums of its tracks.
//
// Three strategies run in order: the toplists browse category, featured
// playlists, then a playlist search per candidate name. The first playlist
// matched wins. Results are cached per market for cacheTTL; debug bypasses
// the cache and attaches the trace with the chosen playlist.
func (s *Service) Trending(ctx context.Context, f spotify.Fetcher, market string, debug bool) *TrendingPayload {
	market = strings.ToUpper(market)
	key := "trending:" + market
	if !debug {
		if v, ok := s.cache.Get(key); ok {
			if payload, ok := v.(*TrendingPayload); ok {
				return payload
			}
		}
	}

	trace := newTrace()
	candidates := topListCandidates(market)

	// A) Region-aware toplists category.
	trace.step("category:toplists")
	var browse spotify.BrowsePlaylistsResponse
	path := fmt.Sprintf("/v1/browse/categories/toplists/playlists?country=%s&limit=50", url.QueryEscape(market))
	if s.appJSON(ctx, f, path, &browse, trace, "category:toplists") {
		if chosen := chooseByNames(browsePlaylistItems(&browse), candidates); chosen != nil {
			chosen.Via = "category"
			return s.finishTrending(ctx, f, key, market, chosen, trace, debug)
		}
	}

	// B) Region-aware featured playlists.
	trace.step("featured")
	browse = spotify.BrowsePlaylistsResponse{}
	path = fmt.Sprintf("/v1/browse/featured-playlists?country=%s&limit=50", url.QueryEscape(market))
	if s.appJSON(ctx, f, path, &browse, trace, "featured") {
		if chosen := chooseByNames(browsePlaylistItems(&browse), candidates); chosen != nil {
			chosen.Via = "featured"
			return s.finishTrending(ctx, f, key, market, chosen, trace, debug)
		}
	}

	// C) Playlist search, one candidate name at a time.
	trace.step("search")
	for _, q := range candidates {
		browse = spotify.BrowsePlaylistsResponse{}
		path := fmt.Sprintf("/v1/search?type=playlist&limit=20&q=%s", url.QueryEscape(q))
		if !s.appJSON(ctx, f, path, &browse, trace, "search:"+q) {
			continue
		}
		if chosen := chooseByNames(browsePlaylistItems(&browse), []string{q}); chosen != nil {
			chosen.Via = "search:" + q
			return s.finishTrending(ctx, f, key, market, chosen, trace, debug)
		}
	}

	payload := &TrendingPayload{Albums: []Album{}, Market: market}
	if debug {
		payload.Diag = trace
	}
	return payload
}

// finishTrending materializes a chosen playlist into albums, caches the
// result, and attaches the trace on debug.
func (s *Service) finishTrending(ctx context.Context, f spotify.Fetcher, key, market string, chosen *ChosenPlaylist, trace *Trace, debug bool) *TrendingPayload {
	albums := s.playlistAlbums(ctx, f, chosen.ID, market, trace)
	payload := &TrendingPayload{Albums: albums, Market: market}
	if !debug {
		s.cache.Set(key, payload, cacheTTL)
	} else {
		trace.Chosen = chosen
		payload.Diag = trace
	}
	return payload
}

// playlistAlbums pages through a playlist's tracks and collects the unique
// parent albums, in playlist order.
func (s *Service) playlistAlbums(ctx context.Context, f spotify.Fetcher, playlistID, market string, trace *Trace) []Album {
	path := fmt.Sprintf("/v1/playlists/%s/tracks?limit=50&market=%s", playlistID, url.QueryEscape(market))

	var items []spotify.PlaylistTrackItem
	for path != "" {
		var page spotify.PlaylistTracksPage
		if !s.appJSON(ctx, f, path, &page, trace, "playlist-tracks") {
			break
		}
		items = append(items, page.Items...)
		path = nextPath(page.Next)
	}

	var albums []spotify.Album
	for _, item := range items {
		if item.Track != nil && item.Track.Album != nil {
			albums = append(albums, *item.Track.Album)
		}
	}
	return mapAlbums(dedupeAlbums(albums))
}

func browsePlaylistItems(rsp *spotify.BrowsePlaylistsResponse) []spotify.Playlist {
	if rsp == nil || rsp.Playlists == nil {
		return nil
	}
	return rsp.Playlists.Items
}

func ownedByPlatform(p *spotify.Playlist) bool {
	return p.Owner.ID == "spotify" || p.Owner.DisplayName == "Spotify"
}

// chooseByNames picks the best playlist for the candidate names: an exact
// name match beats a substring match, and within each pass a platform-owned
// playlist beats any other. Candidate order breaks remaining ties.
func chooseByNames(items []spotify.Playlist, names []string) *ChosenPlaylist {
	match := func(ok func(have, want string) bool) *ChosenPlaylist {
		for _, want := range names {
			var other *spotify.Playlist
			for i := range items {
				p := &items[i]
				if p.ID == "" || p.Name == "" || !ok(p.Name, want) {
					continue
				}
				if ownedByPlatform(p) {
					return &ChosenPlaylist{ID: p.ID, Name: p.Name}
				}
				if other == nil {
					other = p
				}
			}
			if other != nil {
				return &ChosenPlaylist{ID: other.ID, Name: other.Name}
			}
		}
		return nil
	}

	if chosen := match(strings.EqualFold); chosen != nil {
		return chosen
	}
	return match(func(have, want string) bool {
		return strings.Contains(strings.ToLower(have), strings.ToLower(want))
	})
}
