package recur

import (
	"repeatcal/internal/model"
)

// Validate checks rule against the seed date it will be expanded from.
//
// A rule of type none is always valid, whatever its interval. For every other
// type the interval must be at least 1 and the end date, when present, must
// not precede the seed date.
func Validate(seedDate string, rule model.Repeat) error {
	seed, err := model.ParseDate(seedDate)
	if err != nil {
		return &model.ValidationError{Field: "date", Msg: "date must be YYYY-MM-DD"}
	}

	if rule.Type == "" || rule.Type == model.RepeatNone {
		return nil
	}
	if !rule.Type.Valid() {
		return &model.ValidationError{Field: "repeat.type", Msg: "unknown repeat type"}
	}
	if rule.Interval < 1 {
		return &model.ValidationError{Field: "repeat.interval", Msg: "interval must be a positive integer"}
	}
	if rule.EndDate != "" {
		end, err := model.ParseDate(rule.EndDate)
		if err != nil {
			return &model.ValidationError{Field: "repeat.endDate", Msg: "end date must be YYYY-MM-DD"}
		}
		if end.Before(seed) {
			return &model.ValidationError{Field: "repeat.endDate", Msg: "end date precedes start"}
		}
	}
	return nil
}
