// Package notify decides which events are due for a reminder and delivers
// each reminder once from a cron-driven check.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
)

// Reminder is one event whose notification window has opened.
type Reminder struct {
	Event   model.Event
	Message string
}

// Message renders the reminder text for an event.
func Message(ev model.Event) string {
	return fmt.Sprintf("%d minutes until %s starts", ev.NotificationTime, ev.Title)
}

// Due returns the events that start after now and at most NotificationTime
// minutes away. Dates and times are read in loc.
func Due(events []model.Event, now time.Time, loc *time.Location) []Reminder {
	var out []Reminder
	for _, ev := range events {
		start, _, err := ev.Window(loc)
		if err != nil {
			continue
		}
		minutes := start.Sub(now).Minutes()
		if minutes > 0 && minutes <= float64(ev.NotificationTime) {
			out = append(out, Reminder{Event: ev, Message: Message(ev)})
		}
	}
	return out
}

// Source supplies the current events, refreshing them as needed.
type Source func(ctx context.Context) ([]model.Event, error)

// Sink receives reminders.
type Sink interface {
	Remind(r Reminder)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Reminder)

func (f SinkFunc) Remind(r Reminder) { f(r) }

// Scheduler runs Check on a cron schedule.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	spec     string
	loc      *time.Location
	source   Source
	sink     Sink
	notified map[string]bool
	now      func() time.Time
}

// NewScheduler validates spec (standard 5-field cron) and returns a stopped
// scheduler.
func NewScheduler(spec string, loc *time.Location, source Source, sink Sink) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
		loc:      loc,
		source:   source,
		sink:     sink,
		notified: make(map[string]bool),
		now:      time.Now,
	}, nil
}

// Start registers the check and starts the cron loop. Checks run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Check(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	appLog.Info("reminder scheduler started", "cron", s.spec, "timezone", s.loc.String())
	return nil
}

// Stop halts the cron loop and waits for a running check to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("reminder scheduler stopped")
}

// Check refreshes events, then delivers every due reminder not delivered
// before. It returns the reminders delivered by this call.
func (s *Scheduler) Check(ctx context.Context) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.source(ctx)
	if err != nil {
		appLog.Error("reminder check: fetch failed", err)
		return nil
	}

	var sent []Reminder
	for _, r := range Due(events, s.now(), s.loc) {
		if s.notified[r.Event.ID] {
			continue
		}
		s.notified[r.Event.ID] = true
		s.sink.Remind(r)
		sent = append(sent, r)
	}
	if len(sent) > 0 {
		appLog.Debug("reminders delivered", "count", len(sent))
	}
	return sent
}
