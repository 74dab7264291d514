// Package repository persists events for the remote store server.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"repeatcal/internal/model"
)

// ErrNotFound is returned when a mutation targets an id that does not exist.
var ErrNotFound = errors.New("event not found")

// Repository stores events. Batch methods are all-or-nothing: when any id of
// a batch is unknown, nothing is applied and ErrNotFound is returned.
type Repository interface {
	List(ctx context.Context) ([]model.Event, error)
	Create(ctx context.Context, ev model.Event) (model.Event, error)
	CreateMany(ctx context.Context, evs []model.Event) ([]model.Event, error)
	Update(ctx context.Context, id string, ev model.Event) (model.Event, error)
	UpdateMany(ctx context.Context, evs []model.Event) ([]model.Event, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	Close() error
}

// assignID keeps a client-supplied id unless it is empty or already taken.
func assignID(ev model.Event, taken func(string) bool) model.Event {
	if ev.ID == "" || taken(ev.ID) {
		ev.ID = uuid.NewString()
	}
	if ev.Repeat.Type == "" {
		ev.Repeat = model.NoRepeat
	}
	return ev
}
