package ics

import (
	"strings"
	"testing"
	"time"

	"repeatcal/internal/model"
)

var kst = time.FixedZone("KST", 9*60*60)

func TestExportThenParse(t *testing.T) {
	events := []model.Event{
		{
			ID:               "occ-1",
			Title:            "Standup",
			Date:             "2024-10-15",
			StartTime:        "09:00",
			EndTime:          "09:15",
			Description:      "daily sync",
			Location:         "Room 4",
			Category:         "work",
			NotificationTime: 10,
			Repeat:           model.Repeat{Type: model.RepeatWeekly, Interval: 1, ID: "s1"},
		},
		{
			ID:        "occ-2",
			Title:     "Lunch",
			Date:      "2024-10-16",
			StartTime: "12:00",
			EndTime:   "13:00",
			Repeat:    model.NoRepeat,
		},
	}

	out := Export(events, kst, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC))
	for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Standup", "X-REPEATCAL-SERIES:s1", "TRIGGER:-PT10M", "CATEGORIES:work"} {
		if !strings.Contains(out, want) {
			t.Errorf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "RRULE") {
		t.Error("instances must be exported without RRULE")
	}

	parsed, err := Parse([]byte(out), kst)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 2 {
		t.Fatalf("parsed %d events", len(parsed))
	}
	got := parsed[0]
	if got.Title != "Standup" || got.Date != "2024-10-15" || got.StartTime != "09:00" || got.EndTime != "09:15" {
		t.Errorf("parsed = %+v", got)
	}
	if got.Location != "Room 4" || got.Category != "work" || got.Repeat != model.NoRepeat {
		t.Errorf("parsed fields = %+v", got)
	}
	if got.ID != "" {
		t.Errorf("import should leave ids to the server, got %q", got.ID)
	}
}

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@example.com\r\n" +
	"SUMMARY:Review\r\n" +
	"DTSTART:20241015T000000Z\r\n" +
	"DTEND:20241015T010000Z\r\n" +
	"RRULE:FREQ=WEEKLY;INTERVAL=2;UNTIL=20241231T000000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:hourly@example.com\r\n" +
	"SUMMARY:Ping\r\n" +
	"DTSTART:20241015T000000Z\r\n" +
	"RRULE:FREQ=HOURLY\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:No uid\r\n" +
	"DTSTART:20241015T000000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:late@example.com\r\n" +
	"SUMMARY:Late show\r\n" +
	"DTSTART:20241015T140000Z\r\n" +
	"DTEND:20241015T160000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseRRule(t *testing.T) {
	events, err := Parse([]byte(feed), kst)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events (hourly and uid-less skipped), got %+v", events)
	}

	review := events[0]
	want := model.Repeat{Type: model.RepeatWeekly, Interval: 2, EndDate: "2024-12-31"}
	if review.Repeat != want {
		t.Errorf("repeat = %+v, want %+v", review.Repeat, want)
	}
	if review.StartTime != "09:00" || review.EndTime != "10:00" || review.NotificationTime != DefaultNotificationTime {
		t.Errorf("review = %+v", review)
	}

	// 23:00 to 01:00 KST crosses midnight and is clipped.
	late := events[1]
	if late.StartTime != "23:00" || late.EndTime != "23:59" {
		t.Errorf("late = %+v", late)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(nil, kst); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestParseDateValuesWestOfUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:allday@example.com\r\nSUMMARY:Offsite\r\n" +
		"DTSTART;VALUE=DATE:20241015\r\n" +
		"RRULE:FREQ=WEEKLY;UNTIL=20241231\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"

	events, err := Parse([]byte(body), est)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("parsed %d events", len(events))
	}
	got := events[0]
	if got.Date != "2024-10-15" || got.StartTime != "00:00" || got.EndTime != "23:59" {
		t.Errorf("all-day event = %+v", got)
	}
	if got.Repeat.EndDate != "2024-12-31" {
		t.Errorf("until = %q, want 2024-12-31", got.Repeat.EndDate)
	}
}

func TestUntilValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"FREQ=WEEKLY;UNTIL=20241231", "20241231"},
		{"RRULE:FREQ=DAILY;until=20241017T090000Z", "20241017T090000Z"},
		{"FREQ=MONTHLY;INTERVAL=2", ""},
	}
	for _, tt := range tests {
		if got := untilValue(tt.raw); got != tt.want {
			t.Errorf("untilValue(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
