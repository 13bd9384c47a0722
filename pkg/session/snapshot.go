package session

import (
	"sync"

	"github.com/1F47E/quadcursor/pkg/cursor"
	"github.com/1F47E/quadcursor/pkg/describe"
	"github.com/1F47E/quadcursor/pkg/models"
)

// QuadrantSummary is the published content of one quadrant
type QuadrantSummary struct {
	Direction string   `json:"direction"`
	Phrase    string   `json:"phrase,omitempty"`
	Features  []string `json:"features,omitempty"`
}

// Snapshot is a copy of the session state
type Snapshot struct {
	ID        string            `json:"session"`
	State     string            `json:"state"`
	Center    models.Location   `json:"center"`
	Width     float64           `json:"width"`
	Height    float64           `json:"height"`
	Label     string            `json:"label"`
	Title     string            `json:"title"`
	Quadrants []QuadrantSummary `json:"quadrants"`
}

// Snapshot returns the current state. Quadrants are empty until the first
// label has been announced.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:     s.id,
		State:  s.state.String(),
		Center: models.LocationOf(s.cursor.Center()),
		Width:  s.cursor.Width(),
		Height: s.cursor.Height(),
		Label:  s.label,
		Title:  s.title,
	}
	for _, set := range s.sets {
		if set.Quadrant.Direction == "" {
			continue
		}
		q := QuadrantSummary{
			Direction: set.Quadrant.Direction,
			Phrase:    describe.Phrase(set.Quadrant.Direction, set.Features),
		}
		for _, f := range set.Features {
			q.Features = append(q.Features, f.ID)
		}
		snap.Quadrants = append(snap.Quadrants, q)
	}
	return snap
}

// State returns the announce cycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recorder is a Presenter that keeps what it was given. It backs the
// one-shot CLI and HTTP surfaces.
type Recorder struct {
	mu       sync.Mutex
	label    string
	title    string
	labels   []string
	commands []string
	rect     cursor.PixelRect
}

func (r *Recorder) SetLabel(label, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.label, r.title = label, title
	r.labels = append(r.labels, label)
}

func (r *Recorder) AnnounceCommand(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, text)
}

func (r *Recorder) PlaceCursor(rect cursor.PixelRect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rect = rect
}

// Label returns the last label and title
func (r *Recorder) Label() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.label, r.title
}

// Labels returns every label pushed so far
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...)
}

// Commands returns every command announcement pushed so far
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// Rect returns the last cursor rectangle
func (r *Recorder) Rect() cursor.PixelRect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rect
}
