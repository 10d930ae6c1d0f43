package events

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Date precisions, from coarsest to finest.
const (
	precisionYear = iota + 1
	precisionMonth
	precisionDay
)

// date is a parsed "Y", "Y/M" or "Y/M/D" value.
type date struct {
	year, month, day int
	precision        int
}

var errBadDate = errors.New("malformed date")

func parseDate(s string) (date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) > precisionDay {
		return date{}, errBadDate
	}
	vals := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return date{}, errBadDate
		}
		vals[i] = n
	}

	d := date{year: vals[0], month: 1, day: 1, precision: len(vals)}
	if d.precision >= precisionMonth {
		d.month = vals[1]
	}
	if d.precision == precisionDay {
		d.day = vals[2]
	}
	if d.year < 1 || d.year > 9999 {
		return date{}, errBadDate
	}
	// time.Date normalizes out-of-range values; a round trip catches them.
	t := d.time()
	if t.Year() != d.year || int(t.Month()) != d.month || t.Day() != d.day {
		return date{}, errBadDate
	}
	return d, nil
}

func (d date) time() time.Time {
	return time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, time.UTC)
}

// ValidateDate reports whether the submitted date answers a question whose
// correct date is answer. Answers may be a point ("1954", "1954/11",
// "1954/11/01") or an interval of two points joined by "-"; an interval
// accepts either endpoint. A full submitted date never satisfies a coarser
// answer, and a coarser submission never satisfies a finer one. Malformed
// input yields false.
func ValidateDate(submitted, answer string) bool {
	start, end, isInterval := strings.Cut(strings.TrimSpace(answer), "-")
	if isInterval {
		return matchPoint(submitted, start) || matchPoint(submitted, end)
	}
	return matchPoint(submitted, answer)
}

func matchPoint(submitted, answer string) bool {
	want, err := parseDate(answer)
	if err != nil {
		return false
	}
	got, err := parseDate(submitted)
	if err != nil {
		return false
	}

	switch {
	case got.precision == precisionDay && want.precision < precisionDay:
		return false
	case got.precision < want.precision:
		return false
	}

	if got.year != want.year {
		return false
	}
	if want.precision >= precisionMonth && got.month != want.month {
		return false
	}
	if want.precision == precisionDay && got.day != want.day {
		return false
	}
	return true
}

// sortKey is the first date of a point or interval, with missing month and
// day taken as 1. ok is false when the date cannot be parsed.
func sortKey(value string) (t time.Time, ok bool) {
	first, _, _ := strings.Cut(value, "-")
	d, err := parseDate(first)
	if err != nil {
		return time.Time{}, false
	}
	return d.time(), true
}
