package schedule

import (
	"fmt"
	"strings"
	"time"
)

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tues": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thur": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

const lastOfMonth = "lastofmonth"

// YearlySpec is the raw form of a yearly rule. Each list element is a
// pattern accepted by ParseField; Months also accepts month names and Days
// accepts weekday names and "lastofmonth". Empty lists take their defaults:
// every month and day, hour 0, minute 0, second 0.
type YearlySpec struct {
	Months  []string
	Days    []string
	Hours   []string
	Minutes []string
	Seconds []string
}

// Yearly is a rule over month, day, hour, minute and second.
type Yearly struct {
	months   []Field
	days     []Field
	weekdays []time.Weekday
	lastDay  bool
	hours    []Field
	minutes  []Field
	seconds  []Field
}

// ParseYearly validates spec. Invalid elements are reported together.
func ParseYearly(spec YearlySpec) (*Yearly, error) {
	y := &Yearly{}
	var errs []string
	add := func(err error) { errs = append(errs, err.Error()) }

	for _, m := range defaulted(spec.Months, "*") {
		if n, ok := monthNames[strings.ToLower(strings.TrimSpace(m))]; ok {
			y.months = append(y.months, fieldOf(Month, n))
			continue
		}
		f, err := ParseField(Month, m)
		if err != nil {
			add(err)
			continue
		}
		y.months = append(y.months, f)
	}

	for _, d := range defaulted(spec.Days, "*") {
		key := strings.ToLower(strings.TrimSpace(d))
		if wd, ok := weekdayNames[key]; ok {
			y.weekdays = append(y.weekdays, wd)
			continue
		}
		if key == lastOfMonth {
			y.lastDay = true
			continue
		}
		f, err := ParseField(Day, d)
		if err != nil {
			add(err)
			continue
		}
		y.days = append(y.days, f)
	}

	parseList := func(u Unit, raw []string, dst *[]Field) {
		for _, s := range defaulted(raw, "0") {
			f, err := ParseField(u, s)
			if err != nil {
				add(err)
				continue
			}
			*dst = append(*dst, f)
		}
	}
	parseList(Hour, spec.Hours, &y.hours)
	parseList(Minute, spec.Minutes, &y.minutes)
	parseList(Second, spec.Seconds, &y.seconds)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	if len(y.months) == 0 || (len(y.days) == 0 && len(y.weekdays) == 0 && !y.lastDay) {
		return nil, fmt.Errorf("yearly rule matches no dates")
	}
	return y, nil
}

func defaulted(list []string, def string) []string {
	if len(list) == 0 {
		return []string{def}
	}
	return list
}

func fieldOf(u Unit, v int) Field {
	return Field{unit: u, set: []int{v}, hasSet: true, base: -1}
}

func (y *Yearly) String() string { return "yearly rule" }

// MatchesDate reports whether the rule selects the calendar day of d.
func (y *Yearly) MatchesDate(d time.Time) bool {
	if !anyMatch(y.months, int(d.Month()), 1) {
		return false
	}
	if anyMatch(y.days, d.Day(), 1) {
		return true
	}
	for _, wd := range y.weekdays {
		if d.Weekday() == wd {
			return true
		}
	}
	return y.lastDay && d.AddDate(0, 0, 1).Month() != d.Month()
}

// Candidates implements Entry.
func (y *Yearly) Candidates(now time.Time) []time.Time {
	var dates []time.Time
	for _, d := range days(now) {
		if y.MatchesDate(d) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil
	}
	hourOK := func(h int) bool { return anyMatch(y.hours, h, 0) }
	return expand(now, dates, hourOK, unionValues(y.minutes), unionValues(y.seconds))
}

func anyMatch(fields []Field, v, from int) bool {
	for _, f := range fields {
		if f.Matches(v, from) {
			return true
		}
	}
	return false
}

func unionValues(fields []Field) []int {
	seen := make(map[int]bool)
	var out []int
	for v := 0; v <= 59; v++ {
		for _, f := range fields {
			if f.Matches(v, 0) && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}
