// Package store holds the in-memory snapshot of every event instance, the
// single source of truth read by the UI layer.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"repeatcal/internal/model"
	"repeatcal/internal/recur"
)

// Store is replaced wholesale by its single writer and read by any number of
// readers. Readers always receive copies.
type Store struct {
	mu        sync.RWMutex
	events    []model.Event
	byID      map[string]int
	updatedAt time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{byID: make(map[string]int)}
}

// Replace swaps the snapshot for events, sorted by date then start time.
func (s *Store) Replace(events []model.Event) {
	next := make([]model.Event, len(events))
	copy(next, events)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].Date != next[j].Date {
			return next[i].Date < next[j].Date
		}
		return next[i].StartTime < next[j].StartTime
	})

	index := make(map[string]int, len(next))
	for i, ev := range next {
		index[ev.ID] = i
	}

	s.mu.Lock()
	s.events = next
	s.byID = index
	s.updatedAt = time.Now()
	s.mu.Unlock()
}

// Events returns a copy of the current snapshot.
func (s *Store) Events() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of instances in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// UpdatedAt is the time of the last Replace, zero before the first one.
func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Get looks an instance up by id.
func (s *Store) Get(id string) (model.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return model.Event{}, false
	}
	return s.events[i], true
}

// Siblings returns every instance in the series of the instance id, that
// instance included. It returns nil when id is unknown or not recurring.
func (s *Store) Siblings(id string) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil
	}
	return recur.Siblings(s.events, s.events[i])
}

// Between returns the instances dated from..to, both inclusive (YYYY-MM-DD).
func (s *Store) Between(from, to string) []model.Event {
	return s.filter(func(ev model.Event) bool {
		return ev.Date >= from && ev.Date <= to
	})
}

// Search matches term against title, description and location, ignoring
// case. An empty term matches everything.
func (s *Store) Search(term string) []model.Event {
	term = strings.ToLower(strings.TrimSpace(term))
	return s.filter(func(ev model.Event) bool {
		if term == "" {
			return true
		}
		return strings.Contains(strings.ToLower(ev.Title), term) ||
			strings.Contains(strings.ToLower(ev.Description), term) ||
			strings.Contains(strings.ToLower(ev.Location), term)
	})
}

// Overlapping returns the instances whose time window intersects ev.
func (s *Store) Overlapping(ev model.Event) []model.Event {
	return s.filter(func(other model.Event) bool {
		return model.Overlaps(ev, other)
	})
}

func (s *Store) filter(keep func(model.Event) bool) []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, ev := range s.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}
