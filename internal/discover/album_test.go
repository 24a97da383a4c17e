package discover

import (
	"strings"
	"testing"

	"github.com/soundshelf/soundshelf/internal/spotify"
)

func TestMapAlbum(t *testing.T) {
	t.Run("maps upstream record to stable namespaced id", func(t *testing.T) {
		a := spotify.Album{
			ID:      "abc123",
			Name:    "Blue Train",
			Artists: []spotify.Artist{{ID: "ar1", Name: "John Coltrane"}},
			Images:  []spotify.Image{{URL: "https://img.example/cover.jpg"}},
		}

		got := MapAlbum(&a)
		if got.ID != "spotify:album:abc123" {
			t.Errorf("ID = %q, want spotify:album:abc123", got.ID)
		}
		if got.Title != "Blue Train" || got.Artist != "John Coltrane" {
			t.Errorf("unexpected mapping: %+v", got)
		}
		if got.CoverURL != "https://img.example/cover.jpg" {
			t.Errorf("CoverURL = %q", got.CoverURL)
		}
		if got.Source != SourceCatalog {
			t.Errorf("Source = %q, want %q", got.Source, SourceCatalog)
		}
		if got.Rating != 0 || got.Listened {
			t.Errorf("rating/listened should start zeroed: %+v", got)
		}

		if again := MapAlbum(&a); again.ID != got.ID {
			t.Errorf("mapping the same record twice produced different ids: %q vs %q", got.ID, again.ID)
		}
	})

	t.Run("fills placeholders for missing fields", func(t *testing.T) {
		got := MapAlbum(&spotify.Album{ID: "xyz"})
		if got.Title != "Unknown" || got.Artist != "Unknown" || got.CoverURL != "" {
			t.Errorf("unexpected placeholders: %+v", got)
		}
	})

	t.Run("records without ids get unique ids", func(t *testing.T) {
		a := MapAlbum(&spotify.Album{Name: "no id"})
		b := MapAlbum(&spotify.Album{Name: "no id"})
		if a.ID == b.ID {
			t.Errorf("expected distinct ids, both were %q", a.ID)
		}
		if strings.HasPrefix(a.ID, "spotify:album:") {
			t.Errorf("id %q should not be namespaced without an upstream id", a.ID)
		}
	})
}

func TestDedupeAlbums(t *testing.T) {
	in := []spotify.Album{
		{ID: "a", Name: "first"},
		{ID: "b"},
		{ID: "a", Name: "dupe"},
		{Name: "no id"},
		{ID: "c"},
	}

	got := dedupeAlbums(in)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("order not preserved: %+v", got)
	}
	if got[0].Name != "first" {
		t.Errorf("kept the later duplicate: %+v", got[0])
	}
}

func TestSortByReleaseDesc(t *testing.T) {
	in := []spotify.Album{
		{ID: "a", ReleaseDate: "2019-09-27"},
		{ID: "b", ReleaseDate: "2024-03-01"},
		{ID: "c", ReleaseDate: ""},
		{ID: "d", ReleaseDate: "2024"},
	}

	sortByReleaseDesc(in)
	want := []string{"b", "d", "a", "c"}
	for i, id := range want {
		if in[i].ID != id {
			t.Fatalf("position %d = %q, want %q (%+v)", i, in[i].ID, id, in)
		}
	}
}
