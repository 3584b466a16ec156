package pipeline

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// cronField is one parsed field of a cron expression.
type cronField struct {
	wildcard bool
	values   []int
}

func (f cronField) matches(val int) bool {
	return f.wildcard || slices.Contains(f.values, val)
}

// parseCronField parses "*", "5", "1,15", "1-5" and "*/10" style fields,
// checking every value against [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	var values []int
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)

		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid cron step %q", part)
			}
			step, part = n, base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil || from > to {
				return cronField{}, fmt.Errorf("invalid cron range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron field value %q: %w", part, err)
			}
			from, to = v, v
			if step > 1 {
				to = hi
			}
		}
		if from < lo || to > hi {
			return cronField{}, fmt.Errorf("cron value %q outside [%d, %d]", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			values = append(values, v)
		}
	}
	return cronField{values: values}, nil
}

// cronSchedule holds five parsed cron fields.
type cronSchedule struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

func (c cronSchedule) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses a standard 5-field expression
// "minute hour day-of-month month day-of-week".
func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5]struct {
		name   string
		lo, hi int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 6},
	}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i].lo, bounds[i].hi)
		if err != nil {
			return cronSchedule{}, fmt.Errorf("parsing %s field: %w", bounds[i].name, err)
		}
		parsed[i] = cf
	}

	return cronSchedule{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// next returns the first minute strictly after 'after' that matches,
// searching up to one year ahead.
func (c cronSchedule) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}
