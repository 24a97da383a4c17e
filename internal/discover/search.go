package discover

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Scoring weights for ranked search. An album's score is the sum of its best
// title match, best artist match, the boost of the source it came from, and a
// small recency bonus.
const (
	scoreTitleExact  = 100
	scoreTitlePrefix = 70
	scoreTitleSub    = 50

	scoreArtistExact  = 60
	scoreArtistPrefix = 40
	scoreArtistSub    = 25

	scoreSourceAlbum  = 20
	scoreSourceTrack  = 12
	scoreSourceArtist = 8

	scoreRecency = 5
)

// recencyFloor is the release date at or after which the recency bonus applies.
const recencyFloor = "2024-01-01"

// SearchPayload is the /api/search response body.
type SearchPayload struct {
	Albums []Album `json:"albums"`
	Market string  `json:"market"`
	Diag   *Trace  `json:"diag,omitempty"`
}

// UpstreamError reports a rejected upstream call whose status should be
// surfaced to the caller.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return shared.ErrUpstreamRejected }

// Search runs a ranked album search: one multi-type query, expanded with the
// top matched artists' discographies and the matched tracks' parent albums,
// scored against the query and returned best-first.
//
// Results are never cached; queries are too diverse for the hit rate to pay
// for the memory.
func (s *Service) Search(ctx context.Context, f spotify.Fetcher, query string, limit int, market string, debug bool) (*SearchPayload, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: missing q", shared.ErrInvalidInput)
	}
	if limit < 1 {
		limit = 1
	} else if limit > 30 {
		limit = 30
	}
	market = strings.ToUpper(market)

	trace := newTrace()

	trace.step("multi-search")
	multiPath := fmt.Sprintf("/v1/search?market=%s&limit=10&type=album,artist,track&q=%s",
		url.QueryEscape(market), url.QueryEscape(query))
	rsp, err := f.AsApp(ctx, multiPath)
	if err != nil {
		return nil, err
	}
	if !rsp.OK() {
		return nil, &UpstreamError{Status: rsp.Status, Body: string(rsp.Body)}
	}
	var multi spotify.SearchResponse
	if err := rsp.JSON(&multi); err != nil {
		return nil, err
	}

	pool := make(map[string]scoredAlbum)

	// 1) Direct album hits.
	var direct []spotify.Album
	if multi.Albums != nil {
		direct = multi.Albums.Items
	}
	for i := range direct {
		poolPut(pool, &direct[i], scoreAlbum(&direct[i], query, "album"))
	}
	trace.Sources = append(trace.Sources, SourceCount{Src: "album", Count: len(direct)})

	// 2) Discographies of the top matched artists. Capped to three artists to
	// bound upstream calls.
	trace.step("artist-albums")
	var artists []spotify.Artist
	if multi.Artists != nil {
		artists = multi.Artists.Items
	}
	for _, artist := range capSlice(artists, 3) {
		if artist.ID == "" {
			continue
		}
		disc := s.artistDiscography(ctx, f, artist.ID, market, 24, trace)
		for i := range disc {
			poolPut(pool, &disc[i], scoreAlbum(&disc[i], query, "artist"))
		}
	}
	trace.Sources = append(trace.Sources, SourceCount{Src: "artist", Count: min(len(artists), 3)})

	// 3) Parent albums of matched tracks.
	var fromTracks []spotify.Album
	if multi.Tracks != nil {
		fromTracks = trackAlbums(multi.Tracks.Items)
	}
	for i := range fromTracks {
		poolPut(pool, &fromTracks[i], scoreAlbum(&fromTracks[i], query, "track"))
	}
	trace.Sources = append(trace.Sources, SourceCount{Src: "track", Count: len(fromTracks)})

	ranked := rankPool(pool)

	payload := &SearchPayload{Albums: mapAlbums(capSlice(ranked, limit)), Market: market}
	if debug {
		payload.Diag = trace
	}
	return payload, nil
}

// artistDiscography pages through an artist's albums and singles, newest
// first, stopping once cap unique records are collected.
func (s *Service) artistDiscography(ctx context.Context, f spotify.Fetcher, artistID, market string, cap int, trace *Trace) []spotify.Album {
	path := fmt.Sprintf("/v1/artists/%s/albums?include_groups=album,single&market=%s&limit=20",
		artistID, url.QueryEscape(market))

	var all []spotify.Album
	seen := make(map[string]bool)
	for path != "" {
		var page spotify.AlbumPage
		if !s.appJSON(ctx, f, path, &page, trace, "artist-discography") {
			break
		}
		for _, a := range page.Items {
			if a.ID == "" || seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			all = append(all, a)
		}
		path = nextPath(page.Next)
		if len(all) >= cap {
			break
		}
	}

	sortByReleaseDesc(all)
	return all
}

// nextPath converts an upstream absolute continuation URL into a relative
// path, or returns "" when paging is done.
func nextPath(next *string) string {
	if next == nil || *next == "" {
		return ""
	}
	u, err := url.Parse(*next)
	if err != nil {
		return ""
	}
	if u.RawQuery == "" {
		return u.Path
	}
	return u.Path + "?" + u.RawQuery
}

type scoredAlbum struct {
	album spotify.Album
	score int
}

// poolPut records an album with its score, keeping the best score seen for
// each id. Albums without an id are ignored.
func poolPut(pool map[string]scoredAlbum, a *spotify.Album, score int) {
	if a == nil || a.ID == "" {
		return
	}
	if prev, ok := pool[a.ID]; ok && prev.score >= score {
		return
	}
	pool[a.ID] = scoredAlbum{album: *a, score: score}
}

// rankPool orders the pool by score descending; equal scores rank the newer
// release first.
func rankPool(pool map[string]scoredAlbum) []spotify.Album {
	scored := make([]scoredAlbum, 0, len(pool))
	for _, sa := range pool {
		scored = append(scored, sa)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].album.ReleaseDate > scored[j].album.ReleaseDate
	})

	out := make([]spotify.Album, 0, len(scored))
	for _, sa := range scored {
		out = append(out, sa.album)
	}
	return out
}

// scoreAlbum computes the match score of one album against the query for the
// source it came from.
func scoreAlbum(a *spotify.Album, query, src string) int {
	nq := normalizeQuery(query)
	title := normalizeQuery(a.Name)
	artist := ""
	if len(a.Artists) > 0 {
		artist = normalizeQuery(a.Artists[0].Name)
	}

	score := 0

	switch {
	case title == nq:
		score += scoreTitleExact
	case strings.HasPrefix(title, nq):
		score += scoreTitlePrefix
	case strings.Contains(title, nq):
		score += scoreTitleSub
	}

	switch {
	case artist == nq:
		score += scoreArtistExact
	case strings.HasPrefix(artist, nq):
		score += scoreArtistPrefix
	case strings.Contains(artist, nq):
		score += scoreArtistSub
	}

	switch src {
	case "album":
		score += scoreSourceAlbum
	case "track":
		score += scoreSourceTrack
	case "artist":
		score += scoreSourceArtist
	}

	if a.ReleaseDate >= recencyFloor {
		score += scoreRecency
	}

	return score
}

// queryNormalizer strips diacritics so that "Björk" and "Bjork" compare equal.
var queryNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeQuery lowers, trims, and removes diacritics for matching.
func normalizeQuery(s string) string {
	out, _, err := transform.String(queryNormalizer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
