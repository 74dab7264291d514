// Package calendar orchestrates every create, update and delete against the
// remote store and keeps the local snapshot in sync with it.
//
// Single-target edits always detach the instance from its series. Whole
// series operations go through the batch endpoints in one call. Every
// successful mutation is followed by a full refetch; a failed one leaves the
// snapshot untouched.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"repeatcal/internal/gateway"
	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
	"repeatcal/internal/recur"
	"repeatcal/internal/store"
)

// Status classifies a Notice.
type Status string

const (
	StatusSuccess Status = "success"
	StatusInfo    Status = "info"
	StatusError   Status = "error"
)

// Notice reports the outcome of one operation to the user.
type Notice struct {
	Status Status
	Title  string
}

// Notifier receives completion notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notice titles.
const (
	TitleLoaded             = "Events loaded"
	TitleLoadFailed         = "Failed to load events"
	TitleAdded              = "Event added"
	TitleUpdated            = "Event updated"
	TitleSaveFailed         = "Failed to save event"
	TitleSeriesAdded        = "Recurring events added"
	TitleSeriesSaveFailed   = "Failed to save recurring events"
	TitleSeriesUpdated      = "Recurring events updated"
	TitleSeriesUpdateFailed = "Failed to update recurring events"
	TitleSeriesDeleted      = "Recurring events deleted"
	TitleSeriesDeleteFailed = "Failed to delete recurring events"
	TitleDeleted            = "Event deleted"
	TitleDeleteFailed       = "Failed to delete event"
)

// Manager is the single writer of a store.Store.
type Manager struct {
	mu sync.Mutex

	gw       gateway.Gateway
	store    *store.Store
	notifier Notifier
	expand   recur.ExpandConfig
	seriesID func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the receiver of completion notices.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithExpandConfig bounds recurrence expansion.
func WithExpandConfig(cfg recur.ExpandConfig) Option {
	return func(m *Manager) { m.expand = cfg }
}

// WithSeriesIDFunc replaces the series id generator (uuid.NewString).
func WithSeriesIDFunc(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.seriesID = fn
		}
	}
}

// NewManager returns a Manager writing through gw into st. A nil st gets a
// fresh store.
func NewManager(gw gateway.Gateway, st *store.Store, opts ...Option) *Manager {
	if st == nil {
		st = store.New()
	}
	m := &Manager{
		gw:       gw,
		store:    st,
		notifier: NotifierFunc(func(Notice) {}),
		expand: recur.ExpandConfig{
			HorizonDays:    recur.DefaultHorizonDays,
			MaxOccurrences: recur.DefaultMaxOccurrences,
		},
		seriesID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the snapshot for read-only queries.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Events returns a copy of the current snapshot.
func (m *Manager) Events() []model.Event {
	return m.store.Events()
}

// Overlapping returns the instances whose time window intersects ev.
func (m *Manager) Overlapping(ev model.Event) []model.Event {
	return m.store.Overlapping(ev)
}

// Init performs the first load and announces it.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.FetchEvents(ctx); err != nil {
		return err
	}
	m.notify(StatusInfo, TitleLoaded)
	return nil
}

// FetchEvents replaces the snapshot with the remote list.
func (m *Manager) FetchEvents(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh(ctx)
}

// SaveEvent creates a standalone event, or with editing set updates the one
// instance ev.ID. Either way the result is detached from any series.
func (m *Manager) SaveEvent(ctx context.Context, ev model.Event, editing bool) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev = ev.Detached()
	if err := ev.Validate(); err != nil {
		return model.Event{}, m.fail("save event", TitleSaveFailed, err, "id", ev.ID)
	}

	var (
		saved model.Event
		err   error
	)
	if editing {
		if ev.ID == "" {
			return model.Event{}, m.fail("save event", TitleSaveFailed,
				&model.ValidationError{Field: "id", Msg: "event id is required"})
		}
		saved, err = m.gw.UpdateOne(ctx, ev.ID, ev)
	} else {
		saved, err = m.gw.CreateOne(ctx, ev)
	}
	if err != nil {
		return model.Event{}, m.fail("save event", TitleSaveFailed, err, "id", ev.ID, "editing", editing)
	}

	title := TitleAdded
	if editing {
		title = TitleUpdated
	}
	return saved, m.succeed(ctx, StatusSuccess, title)
}

// SaveRepeatingEvents expands seed by its rule under a new series id and
// creates every instance in one batch.
func (m *Manager) SaveRepeatingEvents(ctx context.Context, seed model.Event) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := seed.Validate(); err != nil {
		return nil, m.fail("save recurring events", TitleSeriesSaveFailed, err, "title", seed.Title)
	}
	if err := recur.Validate(seed.Date, seed.Repeat); err != nil {
		return nil, m.fail("save recurring events", TitleSeriesSaveFailed, err, "title", seed.Title)
	}

	if seed.Repeat.IsRecurring() {
		seed.Repeat.ID = m.seriesID()
	} else {
		seed = seed.Detached()
	}

	res, err := recur.Expand(seed, m.expand)
	if err != nil {
		return nil, m.fail("save recurring events", TitleSeriesSaveFailed, err, "title", seed.Title)
	}

	created, err := m.gw.CreateMany(ctx, res.Occurrences)
	if err != nil {
		return nil, m.fail("save recurring events", TitleSeriesSaveFailed, err,
			"series", seed.Repeat.ID, "count", len(res.Occurrences))
	}

	appLog.Info("recurring events created",
		"series", seed.Repeat.ID,
		"repeat", seed.Repeat.Type,
		"count", len(created),
		"truncated", res.Truncated,
	)
	return created, m.succeed(ctx, StatusSuccess, TitleSeriesAdded)
}

// Create routes ev to SaveRepeatingEvents when it carries a cadence and to
// SaveEvent otherwise.
func (m *Manager) Create(ctx context.Context, ev model.Event) ([]model.Event, error) {
	if ev.Repeat.IsRecurring() {
		return m.SaveRepeatingEvents(ctx, ev)
	}
	saved, err := m.SaveEvent(ctx, ev, false)
	if err != nil {
		return nil, err
	}
	return []model.Event{saved}, nil
}

// UpdateRepeatingEvents applies the fields of edited to every instance in
// its series. Each instance keeps its own id, date and repeat descriptor.
// The rule itself cannot change.
func (m *Manager) UpdateRepeatingEvents(ctx context.Context, edited model.Event) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "update recurring events"

	target, ok := m.store.Get(edited.ID)
	if !ok {
		return nil, m.fail(op, TitleSeriesUpdateFailed, &gateway.NotFoundError{Op: op, ID: edited.ID})
	}
	if !target.Repeat.IsRecurring() {
		return nil, m.fail(op, TitleSeriesUpdateFailed,
			&model.ValidationError{Field: "repeat", Msg: "event is not part of a series"}, "id", edited.ID)
	}
	if ruleChanged(target.Repeat, edited.Repeat) {
		return nil, m.fail(op, TitleSeriesUpdateFailed,
			&model.ValidationError{Field: "repeat", Msg: "the rule of an existing series cannot change"}, "id", edited.ID)
	}

	// Validate against the target's date; the date itself is not applied.
	probe := edited
	probe.Date = target.Date
	if err := probe.Validate(); err != nil {
		return nil, m.fail(op, TitleSeriesUpdateFailed, err, "id", edited.ID)
	}

	siblings := m.store.Siblings(edited.ID)
	batch := make([]model.Event, 0, len(siblings))
	for _, s := range siblings {
		upd := edited
		upd.ID = s.ID
		upd.Date = s.Date
		upd.Repeat = s.Repeat
		batch = append(batch, upd)
	}

	updated, err := m.gw.UpdateMany(ctx, batch)
	if err != nil {
		return nil, m.fail(op, TitleSeriesUpdateFailed, err, "id", edited.ID, "count", len(batch))
	}
	return updated, m.succeed(ctx, StatusSuccess, TitleSeriesUpdated)
}

// DeleteEvent removes the single instance id. Its siblings stay.
func (m *Manager) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.gw.DeleteOne(ctx, id); err != nil {
		return m.fail("delete event", TitleDeleteFailed, err, "id", id)
	}
	return m.succeed(ctx, StatusInfo, TitleDeleted)
}

// DeleteRepeatingEvents removes every instance in the series of id. A
// standalone instance is removed alone.
func (m *Manager) DeleteRepeatingEvents(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "delete recurring events"

	var ids []string
	if siblings := m.store.Siblings(id); len(siblings) > 0 {
		ids = make([]string, 0, len(siblings))
		for _, s := range siblings {
			ids = append(ids, s.ID)
		}
	} else if _, ok := m.store.Get(id); ok {
		ids = []string{id}
	} else {
		return m.fail(op, TitleSeriesDeleteFailed, &gateway.NotFoundError{Op: op, ID: id})
	}

	if err := m.gw.DeleteMany(ctx, ids); err != nil {
		return m.fail(op, TitleSeriesDeleteFailed, err, "id", id, "count", len(ids))
	}
	return m.succeed(ctx, StatusInfo, TitleSeriesDeleted)
}

// refresh must be called with mu held.
func (m *Manager) refresh(ctx context.Context) error {
	events, err := m.gw.FetchAll(ctx)
	if err != nil {
		appLog.Error("fetch events failed", err)
		m.notify(StatusError, TitleLoadFailed)
		return err
	}
	m.store.Replace(events)
	appLog.Debug("snapshot replaced", "count", len(events))
	return nil
}

// succeed refetches after a successful mutation. The mutation notice is sent
// even when the refetch fails, since the remote change has been applied.
func (m *Manager) succeed(ctx context.Context, status Status, title string) error {
	err := m.refresh(ctx)
	m.notify(status, title)
	if err != nil {
		return fmt.Errorf("refresh after %q: %w", title, err)
	}
	return nil
}

func (m *Manager) fail(op, title string, err error, kv ...any) error {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		appLog.Warn(op+" rejected", append([]any{"reason", verr.Error()}, kv...)...)
	} else {
		appLog.Error(op+" failed", err, kv...)
	}
	m.notify(StatusError, title)
	return err
}

func (m *Manager) notify(status Status, title string) {
	m.notifier.Notify(Notice{Status: status, Title: title})
}

// ruleChanged ignores the series id and treats an empty type as unchanged.
func ruleChanged(current, edited model.Repeat) bool {
	if edited.Type == "" {
		return false
	}
	return current.Type != edited.Type ||
		current.Interval != edited.Interval ||
		current.EndDate != edited.EndDate
}
