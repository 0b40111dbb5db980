// Package annotation keeps user-drawn chart annotations for one UI session.
package annotation

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"tradesim/internal/errors"
)

// DefaultMinLength is the shortest drag, in pixels, that becomes a trendline.
const DefaultMinLength = 20.0

// Geometry is a line segment in chart pixel space.
type Geometry struct {
	StartX float64 `json:"start_x"`
	StartY float64 `json:"start_y"`
	EndX   float64 `json:"end_x"`
	EndY   float64 `json:"end_y"`
}

// Length returns the euclidean length of the segment.
func (g Geometry) Length() float64 {
	return math.Hypot(g.EndX-g.StartX, g.EndY-g.StartY)
}

// Trendline is a stored annotation. It has no link to price values.
type Trendline struct {
	ID string `json:"id"`
	Geometry
}

// Store is an in-memory, insertion-ordered trendline collection.
type Store struct {
	mu        sync.RWMutex
	lines     []Trendline
	minLength float64
	newID     func() string
}

// NewStore creates a store that ignores drags no longer than minLength pixels.
// A minLength of 0 accepts every segment.
func NewStore(minLength float64) *Store {
	if minLength < 0 {
		minLength = 0
	}
	return &Store{
		lines:     make([]Trendline, 0),
		minLength: minLength,
		newID: func() string {
			return "trendline-" + uuid.NewString()
		},
	}
}

// Add stores g under a fresh id and returns the new trendline.
func (s *Store) Add(g Geometry) (Trendline, error) {
	for _, v := range []float64{g.StartX, g.StartY, g.EndX, g.EndY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Trendline{}, errors.NewValidationError("geometry", g, "coordinates must be finite")
		}
	}
	if s.minLength > 0 && g.Length() <= s.minLength {
		return Trendline{}, errors.ErrTrendlineTooShort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for s.indexOf(id) >= 0 {
		id = s.newID()
	}
	t := Trendline{ID: id, Geometry: g}
	s.lines = append(s.lines, t)
	return t, nil
}

// Remove deletes the trendline with id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
}

// Clear removes every trendline.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = s.lines[:0]
}

// List returns a copy of the trendlines in insertion order.
func (s *Store) List() []Trendline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Trendline, len(s.lines))
	copy(out, s.lines)
	return out
}

// Len returns the number of stored trendlines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i, t := range s.lines {
		if t.ID == id {
			return i
		}
	}
	return -1
}
