package discover

import (
	"context"
	"slices"
	"testing"

	"github.com/soundshelf/soundshelf/internal/spotify"
	tu "github.com/soundshelf/soundshelf/internal/testing"
)

func TestTopListCandidates(t *testing.T) {
	got := topListCandidates("ca")
	want := []string{
		"Top 50 - Canada", "Top 50 Canada", "Canada Top 50",
		"Top 50 - Global", "Global Top 50", "Today's Top Hits",
	}
	if !slices.Equal(got, want) {
		t.Errorf("candidates = %v", got)
	}

	// Unmapped markets fall back to the upcased code.
	if got := topListCandidates("se"); got[0] != "Top 50 - SE" {
		t.Errorf("unmapped market candidate = %q", got[0])
	}
}

func TestChooseByNames(t *testing.T) {
	spotifyOwned := spotify.Owner{ID: "spotify", DisplayName: "Spotify"}
	thirdParty := spotify.Owner{ID: "user99", DisplayName: "Some User"}

	t.Run("exact match beats substring", func(t *testing.T) {
		items := []spotify.Playlist{
			{ID: "p1", Name: "Top 50 - Canada (Unofficial)", Owner: spotifyOwned},
			{ID: "p2", Name: "top 50 - canada", Owner: thirdParty},
		}
		chosen := chooseByNames(items, []string{"Top 50 - Canada"})
		if chosen == nil || chosen.ID != "p2" {
			t.Fatalf("chosen = %+v, want exact match p2", chosen)
		}
	})

	t.Run("platform-owned beats third party within a pass", func(t *testing.T) {
		items := []spotify.Playlist{
			{ID: "p1", Name: "Top 50 - Canada", Owner: thirdParty},
			{ID: "p2", Name: "Top 50 - Canada", Owner: spotifyOwned},
		}
		chosen := chooseByNames(items, []string{"Top 50 - Canada"})
		if chosen == nil || chosen.ID != "p2" {
			t.Fatalf("chosen = %+v, want the owned playlist", chosen)
		}
	})

	t.Run("candidate order breaks ties", func(t *testing.T) {
		items := []spotify.Playlist{
			{ID: "global", Name: "Global Top 50", Owner: spotifyOwned},
			{ID: "local", Name: "Top 50 - Canada", Owner: spotifyOwned},
		}
		chosen := chooseByNames(items, topListCandidates("CA"))
		if chosen == nil || chosen.ID != "local" {
			t.Fatalf("chosen = %+v, want the market playlist", chosen)
		}
	})

	t.Run("nothing matches", func(t *testing.T) {
		items := []spotify.Playlist{{ID: "p1", Name: "Lo-fi Beats", Owner: thirdParty}}
		if chosen := chooseByNames(items, []string{"Top 50 - Canada"}); chosen != nil {
			t.Fatalf("chosen = %+v, want nil", chosen)
		}
	})
}

func TestTrending(t *testing.T) {
	ctx := context.Background()

	t.Run("walks strategies in order and pages the playlist", func(t *testing.T) {
		up := &tu.FakeUpstream{Routes: []tu.UpstreamRoute{
			{Token: "app", Match: "categories/toplists", Status: 404, Body: `{"error":"gone"}`},
			{Token: "app", Match: "featured-playlists", Body: `{"playlists":{"items":[{"id":"lofi","name":"Lo-fi Beats","owner":{"id":"user1"}}]}}`},
			{Token: "app", Match: "type=playlist", Body: `{"playlists":{"items":[
				{"id":"hits","name":"Today's Top Hits","owner":{"id":"spotify","display_name":"Spotify"}}
			]}}`},
			{Token: "app", Match: "offset=50", Body: `{"items":[{"track":{"id":"t3","album":{"id":"al2","name":"two"}}}]}`},
			{Token: "app", Match: "/v1/playlists/hits/tracks", Body: `{"items":[
				{"track":{"id":"t1","album":{"id":"al1","name":"one"}}},
				{"track":{"id":"t2","album":{"id":"al1","name":"one"}}}
			],"next":"https://api.spotify.com/v1/playlists/hits/tracks?offset=50&limit=50"}`},
		}}

		svc := NewService(nil, nil)
		got := svc.Trending(ctx, up, "us", true)

		if got.Market != "US" {
			t.Errorf("market = %q", got.Market)
		}
		if len(got.Albums) != 2 {
			t.Fatalf("albums = %+v, want al1 and al2 deduped", got.Albums)
		}
		if got.Albums[0].ID != "spotify:album:al1" || got.Albums[1].ID != "spotify:album:al2" {
			t.Errorf("album ids = %q, %q", got.Albums[0].ID, got.Albums[1].ID)
		}

		if got.Diag == nil {
			t.Fatal("debug response missing trace")
		}
		wantSteps := []string{"category:toplists", "featured", "search"}
		if !slices.Equal(got.Diag.Steps, wantSteps) {
			t.Errorf("steps = %v, want %v", got.Diag.Steps, wantSteps)
		}
		if got.Diag.Chosen == nil || got.Diag.Chosen.ID != "hits" || got.Diag.Chosen.Via != "search:Today's Top Hits" {
			t.Errorf("chosen = %+v", got.Diag.Chosen)
		}
		if len(got.Diag.Errors) == 0 || got.Diag.Errors[0].Where != "category:toplists" {
			t.Errorf("errors = %+v", got.Diag.Errors)
		}
	})

	t.Run("category win is cached per market", func(t *testing.T) {
		up := &tu.FakeUpstream{Routes: []tu.UpstreamRoute{
			{Token: "app", Match: "categories/toplists", Body: `{"playlists":{"items":[
				{"id":"ca50","name":"Top 50 - Canada","owner":{"id":"spotify"}}
			]}}`},
			{Token: "app", Match: "/v1/playlists/ca50/tracks", Body: `{"items":[{"track":{"id":"t1","album":{"id":"al1","name":"one"}}}]}`},
		}}

		svc := NewService(nil, nil)
		got := svc.Trending(ctx, up, "CA", false)
		if len(got.Albums) != 1 {
			t.Fatalf("albums = %+v", got.Albums)
		}
		if got.Diag != nil {
			t.Error("trace attached to a non-debug response")
		}

		before := len(up.Calls)
		if again := svc.Trending(ctx, up, "CA", false); again != got {
			t.Error("expected the cached payload")
		}
		if len(up.Calls) != before {
			t.Errorf("cached call still hit upstream: %v", up.Calls[before:])
		}

		// A different market resolves independently.
		svc.Trending(ctx, up, "US", false)
		if len(up.Calls) == before {
			t.Error("different market should not share the cache entry")
		}
	})

	t.Run("empty result when no strategy matches", func(t *testing.T) {
		up := &tu.FakeUpstream{}
		svc := NewService(nil, nil)
		got := svc.Trending(ctx, up, "GB", false)
		if len(got.Albums) != 0 || got.Market != "GB" {
			t.Errorf("payload = %+v", got)
		}
	})
}
