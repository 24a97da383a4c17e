package discover

import (
	"fmt"

	"github.com/soundshelf/soundshelf/internal/spotify"
)

// TraceError records one upstream failure encountered by a pipeline.
type TraceError struct {
	Where  string `json:"where"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
}

// ChosenPlaylist identifies the playlist a trending strategy settled on and
// which strategy found it.
type ChosenPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Via  string `json:"via"`
}

// SourceCount records how many candidates one search source contributed.
type SourceCount struct {
	Src   string `json:"src"`
	Count int    `json:"count"`
}

// Trace is the diagnostic decision record of one pipeline run: which
// strategies fired, in order, and every upstream error along the way.
// Debug-mode requests receive it; normal requests never see it.
type Trace struct {
	Steps   []string        `json:"steps"`
	Seed    *Seed           `json:"seed,omitempty"`
	Chosen  *ChosenPlaylist `json:"chosen,omitempty"`
	Sources []SourceCount   `json:"sources,omitempty"`
	Errors  []TraceError    `json:"errors"`
}

func newTrace() *Trace {
	return &Trace{Steps: []string{}, Errors: []TraceError{}}
}

func (t *Trace) step(name string) {
	t.Steps = append(t.Steps, name)
}

// reject records a non-2xx upstream response.
func (t *Trace) reject(where string, rsp *spotify.Response) {
	t.Errors = append(t.Errors, TraceError{Where: where, Status: rsp.Status, Body: string(rsp.Body)})
}

// fail records a transport-level or decode failure.
func (t *Trace) fail(where string, err error) {
	t.Errors = append(t.Errors, TraceError{Where: where, Body: fmt.Sprint(err)})
}
