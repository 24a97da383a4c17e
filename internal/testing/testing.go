// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/soundshelf/soundshelf/internal/shared"
	"github.com/soundshelf/soundshelf/internal/spotify"
)

// UpstreamRoute scripts one canned catalog response. Match is compared as a
// substring of the requested path, Token restricts the route to "user" or
// "app" calls ("" matches both).
type UpstreamRoute struct {
	Token  string
	Match  string
	Status int
	Body   string
}

// FakeUpstream is a scripted test double for [spotify.Fetcher]. Routes are
// matched in order; unmatched requests get a 404. Every call is appended to
// Calls as "user path" or "app path".
type FakeUpstream struct {
	Authenticated bool
	Routes        []UpstreamRoute
	Calls         []string
}

func (f *FakeUpstream) AsUser(ctx context.Context, pathOrURL string) (*spotify.Response, error) {
	if !f.Authenticated {
		return nil, shared.ErrNotAuthenticated
	}
	return f.serve("user", pathOrURL), nil
}

func (f *FakeUpstream) AsApp(ctx context.Context, pathOrURL string) (*spotify.Response, error) {
	return f.serve("app", pathOrURL), nil
}

func (f *FakeUpstream) serve(token, path string) *spotify.Response {
	f.Calls = append(f.Calls, token+" "+path)
	for _, r := range f.Routes {
		if r.Token != "" && r.Token != token {
			continue
		}
		if !strings.Contains(path, r.Match) {
			continue
		}
		status := r.Status
		if status == 0 {
			status = http.StatusOK
		}
		return &spotify.Response{Status: status, Header: http.Header{}, Body: []byte(r.Body)}
	}
	return &spotify.Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte(`{"error":"not scripted"}`)}
}

// CallCount reports how many recorded calls contain the given substring.
func (f *FakeUpstream) CallCount(match string) int {
	n := 0
	for _, c := range f.Calls {
		if strings.Contains(c, match) {
			n++
		}
	}
	return n
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// ArtistPageJSON renders a minimal artist page body for scripted routes.
func ArtistPageJSON(ids ...string) string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf(`{"id":%q,"name":"artist %s"}`, id, id))
	}
	return `{"items":[` + strings.Join(items, ",") + `]}`
}

// TrackPageJSON renders a minimal track page whose tracks each carry a parent
// album named after the track id.
func TrackPageJSON(ids ...string) string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, fmt.Sprintf(
			`{"id":%q,"name":"track %s","album":{"id":"al-%s","name":"album %s","artists":[{"id":"ar-%s","name":"artist %s"}]}}`,
			id, id, id, id, id, id))
	}
	return `{"items":[` + strings.Join(items, ",") + `]}`
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
