package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	multiSpace = regexp.MustCompile(`\s+`)
	sepSpace   = regexp.MustCompile(`\s*([,:\-])\s*`)
)

// DateTime is an explicit "YYYY-MM-DD[ HH[:MM[:SS]]]" entry whose fields
// may each be a pattern, e.g. "*-*-* */2:30".
type DateTime struct {
	source               string
	year, month, day     Field
	hour, minute, second Field
}

// ParseDateTime parses an explicit datetime entry. Missing time parts default to 0.
func ParseDateTime(s string) (*DateTime, error) {
	norm := sepSpace.ReplaceAllString(multiSpace.ReplaceAllString(strings.TrimSpace(s), " "), "$1")
	if norm == "" {
		return nil, fmt.Errorf("empty datetime")
	}

	datePart, timePart, _ := strings.Cut(norm, " ")
	dateFields := strings.Split(datePart, "-")
	if len(dateFields) != 3 {
		return nil, fmt.Errorf("date %q is not YYYY-MM-DD", datePart)
	}
	timeFields := []string{"0", "0", "0"}
	if timePart != "" {
		parts := strings.Split(timePart, ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("time %q has too many parts", timePart)
		}
		copy(timeFields, parts)
	}

	dt := &DateTime{source: s}
	targets := []struct {
		dst  *Field
		unit Unit
		src  string
	}{
		{&dt.year, Year, dateFields[0]},
		{&dt.month, Month, dateFields[1]},
		{&dt.day, Day, dateFields[2]},
		{&dt.hour, Hour, timeFields[0]},
		{&dt.minute, Minute, timeFields[1]},
		{&dt.second, Second, timeFields[2]},
	}
	for _, t := range targets {
		f, err := ParseField(t.unit, t.src)
		if err != nil {
			return nil, err
		}
		*t.dst = f
	}
	return dt, nil
}

func (dt *DateTime) String() string { return dt.source }

// Candidates implements Entry.
func (dt *DateTime) Candidates(now time.Time) []time.Time {
	var dates []time.Time
	for _, d := range days(now) {
		if dt.year.Matches(d.Year(), now.Year()) &&
			dt.month.Matches(int(d.Month()), 1) &&
			dt.day.Matches(d.Day(), 1) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil
	}
	hourOK := func(h int) bool { return dt.hour.Matches(h, 0) }
	return expand(now, dates, hourOK, dt.minute.Values(0, 59), dt.second.Values(0, 59))
}
