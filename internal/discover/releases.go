package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/soundshelf/soundshelf/internal/spotify"
)

// NewReleasesPayload is the /api/new-releases response body. Source reports
// which credential the listing came from.
type NewReleasesPayload struct {
	Albums []Album `json:"albums"`
	Market string  `json:"market"`
	Source string  `json:"source"`
}

// NewReleases lists the freshest albums for a market.
//
// When the caller is connected, the user's profile country overrides the
// country argument and the listing runs on the user token; otherwise the app
// token and the given country are used. Results are cached per market, limit,
// and credential mode for cacheTTL.
func (s *Service) NewReleases(ctx context.Context, f spotify.Fetcher, country string, limit int) (*NewReleasesPayload, error) {
	if limit < 1 {
		limit = 1
	} else if limit > 50 {
		limit = 50
	}

	market := country
	if market == "" {
		market = "US"
	}
	market = strings.ToUpper(market)

	// A connected user's profile country wins over the query parameter.
	useUser := false
	if rsp, err := f.AsUser(ctx, "/v1/me"); err == nil && rsp.OK() {
		var me spotify.User
		if err := rsp.JSON(&me); err == nil && me.Country != "" {
			market = strings.ToUpper(me.Country)
			useUser = true
		}
	}

	mode := "app"
	source := "app-token"
	if useUser {
		mode = "user"
		source = "user-token"
	}

	key := fmt.Sprintf("newreleases:%s:%d:%s", market, limit, mode)
	if v, ok := s.cache.Get(key); ok {
		if payload, ok := v.(*NewReleasesPayload); ok {
			return payload, nil
		}
	}

	path := fmt.Sprintf("/v1/browse/new-releases?country=%s&limit=%d", url.QueryEscape(market), limit)
	var rsp *spotify.Response
	var err error
	if useUser {
		rsp, err = f.AsUser(ctx, path)
	} else {
		rsp, err = f.AsApp(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	if !rsp.OK() {
		return nil, &UpstreamError{Status: rsp.Status, Body: string(rsp.Body)}
	}

	var data spotify.NewReleasesResponse
	if err := rsp.JSON(&data); err != nil {
		return nil, err
	}

	payload := &NewReleasesPayload{
		Albums: mapAlbums(data.Albums.Items),
		Market: market,
		Source: source,
	}
	s.cache.Set(key, payload, cacheTTL)
	return payload, nil
}
