package model

import (
	"time"
)

const (
	// DateLayout is the wire format of Event.Date and Repeat.EndDate.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format of Event.StartTime and Event.EndTime.
	TimeLayout = "15:04"
)

// RepeatType is the cadence of a recurring event.
type RepeatType string

const (
	RepeatNone    RepeatType = "none"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
	RepeatYearly  RepeatType = "yearly"
)

// Valid reports whether t is one of the known repeat types.
func (t RepeatType) Valid() bool {
	switch t {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

// Repeat describes how an event recurs. The zero value and
// {Type: RepeatNone, Interval: 0} both mean "not recurring".
type Repeat struct {
	Type     RepeatType `json:"type"`
	Interval int        `json:"interval"`
	// EndDate is an inclusive upper bound on occurrence dates (YYYY-MM-DD).
	EndDate string `json:"endDate,omitempty"`
	// ID identifies the series every occurrence of one expansion belongs to.
	ID string `json:"id,omitempty"`
}

// NoRepeat is the canonical non-recurring descriptor.
var NoRepeat = Repeat{Type: RepeatNone, Interval: 0}

// IsRecurring reports whether r describes an actual cadence.
func (r Repeat) IsRecurring() bool {
	return r.Type != "" && r.Type != RepeatNone
}

// Event is one persisted calendar instance, standalone or part of a series.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	Repeat      Repeat `json:"repeat"`
	// NotificationTime is the reminder lead time in minutes before start.
	NotificationTime int `json:"notificationTime"`
}

// Detached returns a copy of e removed from its series.
func (e Event) Detached() Event {
	e.Repeat = NoRepeat
	return e
}

// Validate checks that the date and times are well-formed and that the event
// starts before it ends.
func (e Event) Validate() error {
	if _, err := ParseDate(e.Date); err != nil {
		return &ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}
	start, err := time.Parse(TimeLayout, e.StartTime)
	if err != nil {
		return &ValidationError{Field: "startTime", Msg: "start time must be HH:MM"}
	}
	end, err := time.Parse(TimeLayout, e.EndTime)
	if err != nil {
		return &ValidationError{Field: "endTime", Msg: "end time must be HH:MM"}
	}
	if !start.Before(end) {
		return &ValidationError{Field: "startTime", Msg: "start time must be before end time"}
	}
	if e.NotificationTime < 0 {
		return &ValidationError{Field: "notificationTime", Msg: "notification time must not be negative"}
	}
	return nil
}

// Window returns the concrete start and end of e in loc.
func (e Event) Window(loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Overlaps reports whether a and b are distinct events whose time windows
// intersect. Touching boundaries (a ends when b starts) do not overlap.
func Overlaps(a, b Event) bool {
	if a.ID != "" && a.ID == b.ID {
		return false
	}
	if a.Date != b.Date {
		return false
	}
	// HH:MM strings on the same day compare correctly as text.
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
