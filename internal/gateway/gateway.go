// Package gateway is the boundary to the remote event store.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"repeatcal/internal/model"
)

// Gateway is the set of remote calls the orchestrator relies on. Each call is
// atomic: a batch either applies in full or fails as one error.
type Gateway interface {
	FetchAll(ctx context.Context) ([]model.Event, error)
	CreateOne(ctx context.Context, ev model.Event) (model.Event, error)
	CreateMany(ctx context.Context, evs []model.Event) ([]model.Event, error)
	UpdateOne(ctx context.Context, id string, ev model.Event) (model.Event, error)
	UpdateMany(ctx context.Context, evs []model.Event) ([]model.Event, error)
	DeleteOne(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
}

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = errors.New("event not found")

// NotFoundError reports that the mutation target does not exist remotely.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Op + ": " + ErrNotFound.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrNotFound, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NetworkError reports a failed request or a non-success response.
type NetworkError struct {
	Op         string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
