package repository

import (
	"context"
	"sync"

	"repeatcal/internal/model"
)

// Memory keeps events in process memory, in insertion order.
type Memory struct {
	mu     sync.RWMutex
	order  []string
	events map[string]model.Event
}

// NewMemory returns an empty in-memory repository, optionally pre-filled.
func NewMemory(seed ...model.Event) *Memory {
	m := &Memory{events: make(map[string]model.Event)}
	for _, ev := range seed {
		ev = assignID(ev, m.has)
		m.put(ev)
	}
	return m
}

var _ Repository = (*Memory)(nil)

func (m *Memory) has(id string) bool {
	_, ok := m.events[id]
	return ok
}

func (m *Memory) put(ev model.Event) {
	if !m.has(ev.ID) {
		m.order = append(m.order, ev.ID)
	}
	m.events[ev.ID] = ev
}

func (m *Memory) List(_ context.Context) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Event, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.events[id])
	}
	return out, nil
}

func (m *Memory) Create(_ context.Context, ev model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev = assignID(ev, m.has)
	m.put(ev)
	return ev, nil
}

func (m *Memory) CreateMany(_ context.Context, evs []model.Event) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		ev = assignID(ev, m.has)
		m.put(ev)
		out = append(out, ev)
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, id string, ev model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has(id) {
		return model.Event{}, ErrNotFound
	}
	ev.ID = id
	m.events[id] = ev
	return ev, nil
}

func (m *Memory) UpdateMany(_ context.Context, evs []model.Event) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range evs {
		if !m.has(ev.ID) {
			return nil, ErrNotFound
		}
	}
	for _, ev := range evs {
		m.events[ev.ID] = ev
	}
	return evs, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has(id) {
		return ErrNotFound
	}
	m.remove(map[string]bool{id: true})
	return nil
}

func (m *Memory) DeleteMany(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !m.has(id) {
			return ErrNotFound
		}
		set[id] = true
	}
	m.remove(set)
	return nil
}

func (m *Memory) remove(ids map[string]bool) {
	kept := m.order[:0]
	for _, id := range m.order {
		if ids[id] {
			delete(m.events, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *Memory) Close() error { return nil }
