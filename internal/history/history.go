// Package history keeps bounded, chronologically ordered series of derived
// readings keyed by device and series name.
package history

import (
	"strings"
	"sync"
)

// DefaultMaxPoints is one day of five-minute samples
const DefaultMaxPoints = 288

// Key identifies one series
type Key struct {
	DeviceID string
	Series   string
}

// Store is a set of bounded FIFO series. The oldest point is evicted on overflow.
type Store[T any] struct {
	mu        sync.RWMutex
	maxPoints int
	series    map[Key][]T
}

// NewStore creates a store whose series hold at most maxPoints entries.
// Non-positive values fall back to DefaultMaxPoints.
func NewStore[T any](maxPoints int) *Store[T] {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Store[T]{
		maxPoints: maxPoints,
		series:    make(map[Key][]T),
	}
}

// MaxPoints returns the per-series capacity
func (s *Store[T]) MaxPoints() int {
	return s.maxPoints
}

// Append adds a point to the end of the series, evicting from the front when full
func (s *Store[T]) Append(key Key, point T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := append(s.series[key], point)
	if over := len(points) - s.maxPoints; over > 0 {
		// compact in place; the backing array stays bounded
		copy(points, points[over:])
		clear(points[len(points)-over:])
		points = points[:len(points)-over]
	}
	s.series[key] = points
}

// Get returns a copy of the series, oldest first
func (s *Store[T]) Get(key Key) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.series[key]
	if !ok {
		return nil
	}
	out := make([]T, len(points))
	copy(out, points)
	return out
}

// Len returns the number of points currently held for key
func (s *Store[T]) Len(key Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[key])
}

// Series lists the series names held for a device, optionally filtered by prefix
func (s *Store[T]) Series(deviceID, prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for k := range s.series {
		if k.DeviceID == deviceID && strings.HasPrefix(k.Series, prefix) {
			names = append(names, k.Series)
		}
	}
	return names
}

// PurgeDevice drops every series belonging to deviceID
func (s *Store[T]) PurgeDevice(deviceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.series {
		if k.DeviceID == deviceID {
			delete(s.series, k)
			removed++
		}
	}
	return removed
}
