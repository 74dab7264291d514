package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"repeatcal/internal/model"
)

func event(id, date, start string, lead int) model.Event {
	return model.Event{
		ID:               id,
		Title:            "Event " + id,
		Date:             date,
		StartTime:        start,
		EndTime:          "23:00",
		NotificationTime: lead,
	}
}

func TestDue(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 10, 15, 8, 55, 0, 0, loc)

	events := []model.Event{
		event("soon", "2024-10-15", "09:00", 10),    // 5 minutes away, lead 10
		event("edge", "2024-10-15", "09:05", 10),    // exactly 10 minutes away
		event("late", "2024-10-15", "09:30", 10),    // 35 minutes away
		event("started", "2024-10-15", "08:55", 10), // starts now
		event("past", "2024-10-15", "08:00", 60),
		event("nolead", "2024-10-15", "09:00", 0),
		event("other", "2024-10-16", "09:00", 10),
	}

	got := Due(events, now, loc)
	ids := map[string]bool{}
	for _, r := range got {
		ids[r.Event.ID] = true
	}
	if len(got) != 2 || !ids["soon"] || !ids["edge"] {
		t.Errorf("due = %+v", got)
	}
	if got[0].Message != "10 minutes until Event soon starts" {
		t.Errorf("message = %q", got[0].Message)
	}
}

func TestSchedulerDeduplicates(t *testing.T) {
	events := []model.Event{event("a", "2024-10-15", "09:00", 10)}
	var delivered []Reminder
	s, err := NewScheduler("* * * * *", time.UTC,
		func(context.Context) ([]model.Event, error) { return events, nil },
		SinkFunc(func(r Reminder) { delivered = append(delivered, r) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Date(2024, 10, 15, 8, 52, 0, 0, time.UTC) }

	ctx := context.Background()
	if n := len(s.Check(ctx)); n != 1 {
		t.Fatalf("first check delivered %d", n)
	}
	if n := len(s.Check(ctx)); n != 0 {
		t.Errorf("second check delivered %d", n)
	}
	if len(delivered) != 1 || delivered[0].Event.ID != "a" {
		t.Errorf("delivered = %+v", delivered)
	}
}

func TestSchedulerSourceError(t *testing.T) {
	s, err := NewScheduler("*/5 * * * *", nil,
		func(context.Context) ([]model.Event, error) { return nil, errors.New("offline") },
		SinkFunc(func(Reminder) { t.Error("sink called") }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Check(context.Background()); got != nil {
		t.Errorf("got %+v", got)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler("every minute", time.UTC, nil, nil); err == nil {
		t.Error("expected error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler("* * * * *", time.UTC,
		func(context.Context) ([]model.Event, error) { return nil, nil },
		SinkFunc(func(Reminder) {}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}
