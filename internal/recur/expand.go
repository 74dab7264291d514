package recur

import (
	"errors"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "repeatcal/internal/log"
	"repeatcal/internal/model"
)

const (
	// DefaultHorizonDays bounds a series that has no end date (about two years).
	DefaultHorizonDays = 730
	// DefaultMaxOccurrences caps every expansion, with or without an end date.
	DefaultMaxOccurrences = 5000
)

// occurrenceNamespace seeds the deterministic ids of series and occurrences.
var occurrenceNamespace = uuid.MustParse("6f1f7d2e-62a8-4c1b-9d0e-4a7c2f0b9e51")

// ExpandConfig controls how far a recurrence is expanded.
type ExpandConfig struct {
	// HorizonDays is how many days past the seed date a series without an
	// end date runs (inclusive). If zero, DefaultHorizonDays is used.
	HorizonDays int

	// MaxOccurrences is a safety cap on the number of generated instances.
	// If zero, DefaultMaxOccurrences is used.
	MaxOccurrences int
}

// ExpandResult wraps the generated instances and whether the cap cut the
// series short.
type ExpandResult struct {
	Occurrences []model.Event
	Truncated   bool
}

// Expand turns seed and its Repeat rule into the ordered list of instances
// the rule describes.
//
//   - Type none: the seed itself, unchanged.
//   - Otherwise: one instance per date from the seed date, stepping by the
//     cadence times the interval, up to the end date (inclusive) or the
//     horizon when no end date is set.
//
// Monthly and yearly series skip dates that do not exist: a series seeded on
// the 31st only lands in 31-day months, and one seeded on Feb 29 only in leap
// years. The interval counts calendar months or years, so skipped months
// still consume a step.
//
// Every instance copies the seed except Date and ID. IDs are derived from the
// series id and the date, so the same input always yields the same output.
func Expand(seed model.Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	rule := seed.Repeat
	if !rule.IsRecurring() {
		result.Occurrences = []model.Event{seed}
		return result, nil
	}
	if err := Validate(seed.Date, rule); err != nil {
		return result, err
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = DefaultMaxOccurrences
	}

	start, _ := model.ParseDate(seed.Date)
	until := start.AddDate(0, 0, cfg.HorizonDays)
	if rule.EndDate != "" {
		until, _ = model.ParseDate(rule.EndDate)
	}

	freq, err := frequency(rule.Type)
	if err != nil {
		return result, err
	}

	// Ask for one more than the cap so truncation is observable.
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
		Dtstart:  start,
		Until:    until,
		Count:    cfg.MaxOccurrences + 1,
	})
	if err != nil {
		return result, err
	}
	dates := r.All()

	if len(dates) > cfg.MaxOccurrences {
		dates = dates[:cfg.MaxOccurrences]
		result.Truncated = true
		appLog.Warn("expand: occurrences truncated at cap",
			"title", seed.Title,
			"date", seed.Date,
			"repeat", rule.Type,
			"cap", cfg.MaxOccurrences,
		)
	}

	if rule.ID == "" {
		rule.ID = deriveSeriesID(seed)
	}
	ns := seriesNamespace(rule.ID)

	out := make([]model.Event, 0, len(dates))
	for _, d := range dates {
		occ := seed
		occ.Date = model.FormatDate(d)
		occ.Repeat = rule
		occ.ID = uuid.NewSHA1(ns, []byte(occ.Date)).String()
		out = append(out, occ)
	}

	result.Occurrences = out
	return result, nil
}

func frequency(t model.RepeatType) (rrule.Frequency, error) {
	switch t {
	case model.RepeatDaily:
		return rrule.DAILY, nil
	case model.RepeatWeekly:
		return rrule.WEEKLY, nil
	case model.RepeatMonthly:
		return rrule.MONTHLY, nil
	case model.RepeatYearly:
		return rrule.YEARLY, nil
	}
	return 0, errors.New("expand: unsupported repeat type " + string(t))
}

// deriveSeriesID builds a stable series id from the seed's content, used when
// the caller did not assign one.
func deriveSeriesID(seed model.Event) string {
	return uuid.NewSHA1(occurrenceNamespace, []byte(seed.Date+"|"+structuralKey(seed))).String()
}

func seriesNamespace(seriesID string) uuid.UUID {
	if id, err := uuid.Parse(seriesID); err == nil {
		return id
	}
	return uuid.NewSHA1(occurrenceNamespace, []byte(seriesID))
}
