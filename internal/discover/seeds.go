package discover

import (
	"context"
	"fmt"
	"net/url"

	"github.com/soundshelf/soundshelf/internal/spotify"
)

// Seed holds the artist/track ids used to bias a recommendation query, plus
// the names of the strategies that contributed them.
type Seed struct {
	ArtistIDs []string `json:"artistIds"`
	TrackIDs  []string `json:"trackIds"`
	Source    []string `json:"source"`
}

func (s Seed) total() int {
	return len(s.ArtistIDs) + len(s.TrackIDs)
}

const (
	// seedTarget is the combined seed count at which gathering stops early.
	seedTarget = 6
	// maxSeedsPerList is the upstream recommendation endpoint's per-list limit.
	maxSeedsPerList = 5
)

// timeRanges are the listening-history windows probed for top artists/tracks,
// most recent first.
var timeRanges = []string{"short_term", "medium_term", "long_term"}

// marketGenres are the fixed genre queries used for the market-popular last
// resort when the user has no listening data at all.
var marketGenres = []string{"pop", "hip-hop", "dance", "indie", "rock"}

// gatherSeeds builds recommendation seeds from the user's listening data,
// trying progressively broader sources and stopping once enough seeds are
// collected. With no user data at all it falls back to market-popular artists
// via the application credential.
func (s *Service) gatherSeeds(ctx context.Context, f spotify.Fetcher, market string, trace *Trace) Seed {
	var artistIDs, trackIDs, source []string

	// 1) Top artists/tracks across decreasing time windows.
	for _, rng := range timeRanges {
		var topArtists spotify.ArtistPage
		if s.userJSON(ctx, f, fmt.Sprintf("/v1/me/top/artists?time_range=%s&limit=15", rng), &topArtists, trace, "top_artists:"+rng) {
			if ids := artistIDList(topArtists.Items); len(ids) > 0 {
				artistIDs = append(artistIDs, ids...)
				source = append(source, "top_artists:"+rng)
			}
		}

		var topTracks spotify.TrackPage
		if s.userJSON(ctx, f, fmt.Sprintf("/v1/me/top/tracks?time_range=%s&limit=15", rng), &topTracks, trace, "top_tracks:"+rng) {
			if ids := trackIDList(topTracks.Items); len(ids) > 0 {
				trackIDs = append(trackIDs, ids...)
				source = append(source, "top_tracks:"+rng)
			}
		}

		if len(artistIDs)+len(trackIDs) >= seedTarget {
			break
		}
	}

	// 2) Recently played tracks.
	if len(artistIDs)+len(trackIDs) < seedTarget {
		var recent spotify.PlayHistoryPage
		if s.userJSON(ctx, f, "/v1/me/player/recently-played?limit=50", &recent, trace, "recently_played") {
			var aIDs, tIDs []string
			for _, item := range recent.Items {
				if item.Track == nil {
					continue
				}
				if item.Track.ID != "" {
					tIDs = append(tIDs, item.Track.ID)
				}
				aIDs = append(aIDs, artistIDList(item.Track.Artists)...)
			}
			if len(aIDs) > 0 {
				artistIDs = append(artistIDs, aIDs...)
				source = append(source, "recent_artists")
			}
			if len(tIDs) > 0 {
				trackIDs = append(trackIDs, tIDs...)
				source = append(source, "recent_tracks")
			}
		}
	}

	// 3) Saved albums.
	if len(artistIDs)+len(trackIDs) < seedTarget {
		var saved spotify.SavedAlbumPage
		if s.userJSON(ctx, f, "/v1/me/albums?limit=50", &saved, trace, "saved_albums") {
			var aIDs []string
			for _, item := range saved.Items {
				if item.Album != nil {
					aIDs = append(aIDs, artistIDList(item.Album.Artists)...)
				}
			}
			if len(aIDs) > 0 {
				artistIDs = append(artistIDs, aIDs...)
				source = append(source, "saved_albums")
			}
		}
	}

	// 4) Followed artists.
	if len(artistIDs)+len(trackIDs) < seedTarget {
		var followed spotify.FollowedArtistsResponse
		if s.userJSON(ctx, f, "/v1/me/following?type=artist&limit=50", &followed, trace, "followed_artists") {
			if ids := artistIDList(followed.Artists.Items); len(ids) > 0 {
				artistIDs = append(artistIDs, ids...)
				source = append(source, "followed_artists")
			}
		}
	}

	artistIDs = dedupeIDs(artistIDs)
	trackIDs = dedupeIDs(trackIDs)

	// 5) Expand a thin artist pool via related artists.
	if len(artistIDs) > 0 && len(artistIDs) < 15 {
		if related := s.relatedArtists(ctx, f, artistIDs, 15, trace); len(related) > 0 {
			artistIDs = dedupeIDs(append(artistIDs, related...))
			source = append(source, "related_artists")
		}
	}

	// 6) Market-popular as last resort: no user listening data whatsoever.
	if len(artistIDs)+len(trackIDs) == 0 {
		var found []string
		for _, genre := range marketGenres {
			var result spotify.SearchResponse
			path := fmt.Sprintf("/v1/search?type=artist&market=%s&limit=10&q=%s",
				url.QueryEscape(market), url.QueryEscape("genre:"+genre))
			if !s.appJSON(ctx, f, path, &result, trace, "market_popular:"+genre) {
				continue
			}
			if result.Artists != nil {
				found = append(found, artistIDList(result.Artists.Items)...)
			}
			if len(found) >= 10 {
				break
			}
		}
		artistIDs = dedupeIDs(found)
		if len(artistIDs) > 0 {
			source = append(source, "market_popular")
		}
	}

	// Upstream recommendation endpoint accepts at most 5 of each.
	return Seed{
		ArtistIDs: capSlice(artistIDs, maxSeedsPerList),
		TrackIDs:  capSlice(trackIDs, maxSeedsPerList),
		Source:    source,
	}
}

// relatedArtists collects up to take unique related-artist ids for the first
// five known artists. Runs user-independent, on the application credential.
func (s *Service) relatedArtists(ctx context.Context, f spotify.Fetcher, artistIDs []string, take int, trace *Trace) []string {
	var pool []string
	for _, id := range capSlice(artistIDs, 5) {
		var related spotify.RelatedArtistsResponse
		if !s.appJSON(ctx, f, "/v1/artists/"+id+"/related-artists", &related, trace, "related_artists") {
			continue
		}
		pool = append(pool, artistIDList(related.Artists)...)
	}
	return capSlice(dedupeIDs(pool), take)
}

func artistIDList(artists []spotify.Artist) []string {
	var ids []string
	for _, a := range artists {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func trackIDList(tracks []spotify.Track) []string {
	var ids []string
	for _, t := range tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
