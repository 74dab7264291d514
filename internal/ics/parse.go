package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
)

// DefaultNotificationTime is the reminder lead time given to imported events.
const DefaultNotificationTime = 10

// Parse reads an ICS payload into seed events ready for creation.
//
//   - DTSTART/DTEND become date, startTime and endTime in loc. All-day events
//     span 00:00 to 23:59 of their start date.
//   - An RRULE with FREQ DAILY/WEEKLY/MONTHLY/YEARLY becomes the Repeat rule
//     (INTERVAL, and UNTIL as the end date). Other RRULE parts are dropped.
//   - Events with an unsupported frequency, or missing UID/DTSTART, are
//     logged and skipped.
//
// IDs are left empty; the remote store assigns them.
func Parse(body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	if propValue(ve, ical.ComponentPropertyUniqueId) == "" {
		return out, errors.New("missing UID")
	}
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}

	out.Title = propValue(ve, ical.ComponentPropertySummary)
	out.Description = propValue(ve, ical.ComponentPropertyDescription)
	out.Location = propValue(ve, ical.ComponentPropertyLocation)
	out.Category = firstCategory(propValue(ve, ical.ComponentPropertyCategories))
	out.NotificationTime = DefaultNotificationTime

	if isAllDay(dtStart) {
		// Date values are floating calendar days, never shifted into loc.
		date, ok := icalDate(dtStart.Value)
		if !ok {
			return out, errors.New("malformed DTSTART date: " + dtStart.Value)
		}
		out.Date = date
		out.StartTime = "00:00"
		out.EndTime = "23:59"
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		start = start.In(loc)
		out.Date = model.FormatDate(start)

		end, err := ve.GetEndAt()
		if err != nil || !end.After(start) {
			end = start.Add(time.Hour)
		}
		end = end.In(loc)
		out.StartTime = start.Format(model.TimeLayout)
		out.EndTime = end.Format(model.TimeLayout)
		// Events crossing midnight are clipped to the start day.
		if model.FormatDate(end) != out.Date || out.EndTime <= out.StartTime {
			out.EndTime = "23:59"
		}
	}

	out.Repeat = model.NoRepeat
	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		rule, err := repeatFromRRule(raw, loc)
		if err != nil {
			return out, err
		}
		out.Repeat = rule
	}

	return out, nil
}

func repeatFromRRule(raw string, loc *time.Location) (model.Repeat, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return model.Repeat{}, err
	}

	var rule model.Repeat
	switch opt.Freq {
	case rrule.DAILY:
		rule.Type = model.RepeatDaily
	case rrule.WEEKLY:
		rule.Type = model.RepeatWeekly
	case rrule.MONTHLY:
		rule.Type = model.RepeatMonthly
	case rrule.YEARLY:
		rule.Type = model.RepeatYearly
	default:
		return model.Repeat{}, errors.New("unsupported RRULE frequency: " + raw)
	}

	rule.Interval = opt.Interval
	if rule.Interval < 1 {
		rule.Interval = 1
	}
	if !opt.Until.IsZero() {
		if date, ok := icalDate(untilValue(raw)); ok {
			rule.EndDate = date
		} else {
			rule.EndDate = model.FormatDate(opt.Until.In(loc))
		}
	}
	return rule, nil
}

// untilValue returns the raw UNTIL part of an RRULE value.
func untilValue(raw string) string {
	for _, part := range strings.Split(strings.TrimPrefix(raw, "RRULE:"), ";") {
		if k, v, ok := strings.Cut(part, "="); ok && strings.EqualFold(k, "UNTIL") {
			return v
		}
	}
	return ""
}

// icalDate converts a bare YYYYMMDD value to YYYY-MM-DD. Date-times are
// rejected.
func icalDate(v string) (string, bool) {
	if len(v) != 8 {
		return "", false
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return "", false
	}
	return model.FormatDate(t), true
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// isAllDay reports DTSTART;VALUE=DATE or a bare YYYYMMDD value.
func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func firstCategory(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
