package model

import (
	"errors"
	"testing"
	"time"
)

func sample() Event {
	return Event{
		ID:               "1",
		Title:            "standup",
		Date:             "2024-10-15",
		StartTime:        "09:00",
		EndTime:          "09:30",
		Repeat:           Repeat{Type: RepeatWeekly, Interval: 1, ID: "s1"},
		NotificationTime: 10,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
		field  string
	}{
		{"valid", func(*Event) {}, ""},
		{"bad date", func(e *Event) { e.Date = "2024/10/15" }, "date"},
		{"bad start", func(e *Event) { e.StartTime = "9am" }, "startTime"},
		{"bad end", func(e *Event) { e.EndTime = "" }, "endTime"},
		{"start equals end", func(e *Event) { e.EndTime = e.StartTime }, "startTime"},
		{"start after end", func(e *Event) { e.StartTime = "10:00" }, "startTime"},
		{"negative lead", func(e *Event) { e.NotificationTime = -1 }, "notificationTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := sample()
			tt.mutate(&ev)
			err := ev.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestDetached(t *testing.T) {
	ev := sample()
	d := ev.Detached()
	if d.Repeat != NoRepeat {
		t.Errorf("repeat = %+v, want %+v", d.Repeat, NoRepeat)
	}
	if ev.Repeat.Type != RepeatWeekly {
		t.Error("Detached must not modify the receiver")
	}
	if d.Title != ev.Title || d.ID != ev.ID {
		t.Error("Detached must keep other fields")
	}
}

func TestOverlaps(t *testing.T) {
	a := sample()
	b := sample()
	b.ID = "2"

	b.StartTime, b.EndTime = "09:15", "10:00"
	if !Overlaps(a, b) {
		t.Error("expected overlap")
	}

	b.StartTime, b.EndTime = "09:30", "10:00"
	if Overlaps(a, b) {
		t.Error("touching windows should not overlap")
	}

	b.StartTime, b.EndTime = "09:00", "09:30"
	b.Date = "2024-10-16"
	if Overlaps(a, b) {
		t.Error("different days should not overlap")
	}

	if Overlaps(a, a) {
		t.Error("an event does not overlap itself")
	}
}

func TestWindow(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	start, end, err := sample().Window(loc)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 10, 15, 9, 0, 0, 0, loc)
	if !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if end.Sub(start) != 30*time.Minute {
		t.Errorf("duration = %v", end.Sub(start))
	}
}

func TestRepeatType(t *testing.T) {
	if !RepeatMonthly.Valid() || RepeatType("hourly").Valid() {
		t.Error("Valid misclassifies types")
	}
	if (Repeat{}).IsRecurring() || NoRepeat.IsRecurring() {
		t.Error("zero and none repeats are not recurring")
	}
	if !(Repeat{Type: RepeatDaily, Interval: 1}).IsRecurring() {
		t.Error("daily repeat is recurring")
	}
}
