package recur

import (
	"strconv"
	"strings"

	"repeatcal/internal/model"
)

// SeriesKey returns the grouping key shared by every instance of one series.
// Instances carrying a series id group by that id alone. Older instances
// without one fall back to structural equality of the repeat descriptor and
// the fields copied from the seed. Non-recurring events have no key.
func SeriesKey(ev model.Event) (string, bool) {
	if !ev.Repeat.IsRecurring() {
		return "", false
	}
	if ev.Repeat.ID != "" {
		return "id:" + ev.Repeat.ID, true
	}
	return "fields:" + structuralKey(ev), true
}

// SameSeries reports whether a and b belong to the same series.
func SameSeries(a, b model.Event) bool {
	ka, ok := SeriesKey(a)
	if !ok {
		return false
	}
	kb, ok := SeriesKey(b)
	return ok && ka == kb
}

// Siblings returns the events in all that share target's series, target
// included, in their original order.
func Siblings(all []model.Event, target model.Event) []model.Event {
	key, ok := SeriesKey(target)
	if !ok {
		return nil
	}
	var out []model.Event
	for _, ev := range all {
		if k, ok := SeriesKey(ev); ok && k == key {
			out = append(out, ev)
		}
	}
	return out
}

func structuralKey(ev model.Event) string {
	parts := []string{
		string(ev.Repeat.Type),
		strconv.Itoa(ev.Repeat.Interval),
		ev.Repeat.EndDate,
		ev.Title,
		ev.StartTime,
		ev.EndTime,
		ev.Description,
		ev.Location,
		ev.Category,
		strconv.Itoa(ev.NotificationTime),
	}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "|", `\|`)
	}
	return strings.Join(parts, "|")
}
