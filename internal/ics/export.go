package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
)

const (
	productID = "-//repeatcal//repeatcal//EN"

	// propSeries carries the series id of an exported instance.
	propSeries = ical.ComponentProperty("X-REPEATCAL-SERIES")
)

// Export renders events as one VCALENDAR with a VEVENT per instance. Dates
// and times are interpreted in loc; now stamps DTSTAMP. Series are exported
// as their concrete instances, tagged with X-REPEATCAL-SERIES, never as RRULE.
func Export(events []model.Event, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		start, end, err := ev.Window(loc)
		if err != nil {
			appLog.Error("ics export: skipping malformed event", err, "id", ev.ID)
			continue
		}

		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now)
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Category != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, ev.Category)
		}
		if ev.Repeat.IsRecurring() && ev.Repeat.ID != "" {
			ve.SetProperty(propSeries, ev.Repeat.ID)
		}
		if ev.NotificationTime > 0 {
			alarm := ve.AddAlarm()
			alarm.SetProperty(ical.ComponentPropertyAction, "DISPLAY")
			alarm.SetProperty(ical.ComponentPropertyTrigger, "-PT"+strconv.Itoa(ev.NotificationTime)+"M")
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Title)
		}
	}

	return cal.Serialize()
}
