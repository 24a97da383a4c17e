package discover

import (
	"sort"

	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
)

// SourceCatalog marks albums that were mapped from an upstream catalog record,
// as opposed to entries a user added by hand.
const SourceCatalog = "catalog"

// Album is the client-facing catalog item shape.
type Album struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"coverUrl"`
	Rating   int    `json:"rating"`
	Listened bool   `json:"listened"`
	Source   string `json:"source"`
}

// MapAlbum maps an upstream album record to the client shape.
//
// Records with an upstream id map to a stable namespaced id so repeated
// mappings of the same record deduplicate by identity; records without one get
// a fresh unique id and are never deduplicated against each other.
func MapAlbum(a *spotify.Album) Album {
	id := shared.GenerateID()
	title, artist, cover := "Unknown", "Unknown", ""

	if a != nil {
		if a.ID != "" {
			id = "spotify:album:" + a.ID
		}
		if a.Name != "" {
			title = a.Name
		}
		if len(a.Artists) > 0 && a.Artists[0].Name != "" {
			artist = a.Artists[0].Name
		}
		if len(a.Images) > 0 {
			cover = a.Images[0].URL
		}
	}

	return Album{
		ID:       id,
		Title:    title,
		Artist:   artist,
		CoverURL: cover,
		Source:   SourceCatalog,
	}
}

// mapAlbums maps a slice of upstream albums in order.
func mapAlbums(in []spotify.Album) []Album {
	out := make([]Album, 0, len(in))
	for i := range in {
		out = append(out, MapAlbum(&in[i]))
	}
	return out
}

// dedupeAlbums keeps the first occurrence of each album id, preserving order.
// Albums without an id are dropped.
func dedupeAlbums(in []spotify.Album) []spotify.Album {
	seen := make(map[string]bool, len(in))
	var out []spotify.Album
	for _, a := range in {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

// dedupeIDs keeps the first occurrence of each id, preserving order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// sortByReleaseDesc orders albums newest first. Release dates are upstream
// ISO strings (YYYY, YYYY-MM, or YYYY-MM-DD), so byte comparison orders them.
func sortByReleaseDesc(albums []spotify.Album) {
	sort.SliceStable(albums, func(i, j int) bool {
		return albums[i].ReleaseDate > albums[j].ReleaseDate
	})
}

// capSlice truncates s to at most n entries.
func capSlice[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
