package discover

import (
	"context"
	"errors"
	"testing"

	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
	tu "github.com/soundshelf/soundshelf/internal/testing"
)

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"  Abbey Road ": "abbey road",
		"Björk":         "bjork",
		"BEYONCÉ":       "beyonce",
		"mañana":        "manana",
	}
	for in, want := range cases {
		if got := normalizeQuery(in); got != want {
			t.Errorf("normalizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScoreAlbum(t *testing.T) {
	t.Run("exact title on a direct album hit", func(t *testing.T) {
		a := spotify.Album{Name: "Abbey Road", ReleaseDate: "1969-09-26"}
		if got := scoreAlbum(&a, "abbey road", "album"); got != 120 {
			t.Errorf("score = %d, want 120 (exact title + album source)", got)
		}
	})

	t.Run("substring title from an artist discography", func(t *testing.T) {
		a := spotify.Album{Name: "Abbey Road Sessions", ReleaseDate: "2012-10-26"}
		if got := scoreAlbum(&a, "road", "artist"); got != 58 {
			t.Errorf("score = %d, want 58 (substring title + artist source)", got)
		}
	})

	t.Run("artist match with recency bonus", func(t *testing.T) {
		a := spotify.Album{
			Name:        "Unrelated",
			Artists:     []spotify.Artist{{Name: "Caribou"}},
			ReleaseDate: "2024-10-04",
		}
		// exact artist 60 + track source 12 + recency 5
		if got := scoreAlbum(&a, "Caribou", "track"); got != 77 {
			t.Errorf("score = %d, want 77", got)
		}
	})

	t.Run("diacritics do not break matching", func(t *testing.T) {
		a := spotify.Album{Name: "Vespertine", Artists: []spotify.Artist{{Name: "Björk"}}}
		if got := scoreAlbum(&a, "bjork", "album"); got != 80 {
			t.Errorf("score = %d, want 80 (exact artist + album source)", got)
		}
	})
}

func TestRankPool(t *testing.T) {
	pool := map[string]scoredAlbum{
		"a": {album: spotify.Album{ID: "a", ReleaseDate: "2020-01-01"}, score: 50},
		"b": {album: spotify.Album{ID: "b", ReleaseDate: "2024-01-01"}, score: 50},
		"c": {album: spotify.Album{ID: "c", ReleaseDate: "1999-01-01"}, score: 120},
	}

	got := rankPool(pool)
	if got[0].ID != "c" {
		t.Errorf("highest score should rank first, got %q", got[0].ID)
	}
	// Equal scores: the newer release wins the tie.
	if got[1].ID != "b" || got[2].ID != "a" {
		t.Errorf("tie-break wrong: %q then %q", got[1].ID, got[2].ID)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a query", func(t *testing.T) {
		svc := NewService(nil, nil)
		if _, err := svc.Search(ctx, &tu.FakeUpstream{}, "   ", 10, "US", false); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("surfaces the upstream status on multi-search failure", func(t *testing.T) {
		up := &tu.FakeUpstream{Routes: []tu.UpstreamRoute{
			{Token: "app", Match: "type=album,artist,track", Status: 429, Body: `{"error":"slow down"}`},
		}}

		svc := NewService(nil, nil)
		_, err := svc.Search(ctx, up, "radiohead", 10, "US", false)

		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Status != 429 {
			t.Fatalf("err = %v, want UpstreamError 429", err)
		}
		if !errors.Is(err, shared.ErrUpstreamRejected) {
			t.Error("UpstreamError should unwrap to ErrUpstreamRejected")
		}
	})

	t.Run("merges sources and ranks best-first", func(t *testing.T) {
		multi := `{
			"albums":{"items":[
				{"id":"exact","name":"In Rainbows","artists":[{"name":"Radiohead"}],"release_date":"2007-10-10"},
				{"id":"sub","name":"In Rainbows Disk 2","artists":[{"name":"Radiohead"}],"release_date":"2007-12-03"}
			]},
			"artists":{"items":[{"id":"art1","name":"Radiohead"}]},
			"tracks":{"items":[
				{"id":"tr1","name":"Nude","album":{"id":"disc1","name":"In Rainbows Live","artists":[{"name":"Radiohead"}],"release_date":"2008-01-01"}}
			]}
		}`
		up := &tu.FakeUpstream{Routes: []tu.UpstreamRoute{
			{Token: "app", Match: "type=album,artist,track", Body: multi},
			{Token: "app", Match: "/v1/artists/art1/albums", Body: `{"items":[
				{"id":"disc1","name":"In Rainbows Live","artists":[{"name":"Radiohead"}],"release_date":"2008-01-01"},
				{"id":"deep","name":"Amnesiac","artists":[{"name":"Radiohead"}],"release_date":"2001-06-05"}
			]}`},
		}}

		svc := NewService(nil, nil)
		got, err := svc.Search(ctx, up, "in rainbows", 10, "us", true)
		if err != nil {
			t.Fatal(err)
		}

		if got.Market != "US" {
			t.Errorf("market = %q, want upcased US", got.Market)
		}
		if len(got.Albums) != 4 {
			t.Fatalf("albums = %+v, want 4 unique", got.Albums)
		}
		// exact title beats prefix beats the rest
		if got.Albums[0].ID != "spotify:album:exact" {
			t.Errorf("first = %q", got.Albums[0].ID)
		}
		if got.Albums[1].ID != "spotify:album:sub" {
			t.Errorf("second = %q", got.Albums[1].ID)
		}
		// disc1 appears via both the artist discography and a track's parent
		// album; it must surface once, with the better (track) score.
		if got.Albums[2].ID != "spotify:album:disc1" {
			t.Errorf("third = %q", got.Albums[2].ID)
		}
		if got.Diag == nil || len(got.Diag.Sources) != 3 {
			t.Errorf("trace sources = %+v", got.Diag)
		}
	})

	t.Run("clamps the limit", func(t *testing.T) {
		multi := `{"albums":{"items":[
			{"id":"a1","name":"q one"},{"id":"a2","name":"q two"},{"id":"a3","name":"q three"}
		]}}`
		up := &tu.FakeUpstream{Routes: []tu.UpstreamRoute{
			{Token: "app", Match: "/v1/search", Body: multi},
		}}

		svc := NewService(nil, nil)
		got, err := svc.Search(ctx, up, "q", -3, "US", false)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Albums) != 1 {
			t.Errorf("albums = %d, want limit clamped to 1", len(got.Albums))
		}
	})
}
