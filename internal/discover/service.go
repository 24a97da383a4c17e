package discover

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/soundshelf/soundshelf/internal/cache"
	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
)

// cacheTTL is how long every successful non-debug pipeline result stays fresh.
const cacheTTL = 5 * time.Minute

// Service runs the discovery pipelines against an upstream fetcher, sharing
// one response cache across requests.
type Service struct {
	cache  *cache.Store
	logger *log.Logger
}

// NewService creates a Service with the given shared cache.
func NewService(store *cache.Store, logger *log.Logger) *Service {
	if store == nil {
		store = cache.NewStore()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{cache: store, logger: logger}
}

// userJSON fetches path with the user token and decodes into v.
//
// Any failure (not connected, non-2xx, transport error, malformed JSON) is
// recorded in the trace and reported as "no data from this source" so the
// caller proceeds to its next strategy.
func (s *Service) userJSON(ctx context.Context, f spotify.Fetcher, path string, v any, trace *Trace, where string) bool {
	rsp, err := f.AsUser(ctx, path)
	if err != nil {
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			trace.fail(where, err)
		}
		return false
	}
	if !rsp.OK() {
		trace.reject(where, rsp)
		return false
	}
	if err := rsp.JSON(v); err != nil {
		trace.fail(where, err)
		return false
	}
	return true
}

// appJSON is userJSON for the application token.
func (s *Service) appJSON(ctx context.Context, f spotify.Fetcher, path string, v any, trace *Trace, where string) bool {
	rsp, err := f.AsApp(ctx, path)
	if err != nil {
		trace.fail(where, err)
		return false
	}
	if !rsp.OK() {
		trace.reject(where, rsp)
		return false
	}
	if err := rsp.JSON(v); err != nil {
		trace.fail(where, err)
		return false
	}
	return true
}
