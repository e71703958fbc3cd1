package schedule

import (
	"time"
)

// Horizon is the look-ahead of a schedule window.
const Horizon = time.Hour

// Entry produces firing times for one schedule specification.
type Entry interface {
	// Candidates returns firing times t with 0 < t-now <= Horizon.
	Candidates(now time.Time) []time.Time
	String() string
}

// WithinHour reports whether candidate lies in (now, now+1h].
// A candidate equal to now is already missed.
func WithinHour(candidate, now time.Time) bool {
	d := candidate.Sub(now)
	return d > 0 && d <= Horizon
}

// days returns today and tomorrow at midnight in now's location.
func days(now time.Time) [2]time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return [2]time.Time{today, today.AddDate(0, 0, 1)}
}

// closeHours returns the current and next hour of day.
func closeHours(now time.Time) [2]int {
	return [2]int{now.Hour(), (now.Hour() + 1) % 24}
}

// expand combines dates with the matching hours, minutes and seconds and
// keeps the combinations inside the window.
func expand(now time.Time, dates []time.Time, hourOK func(int) bool, minutes, seconds []int) []time.Time {
	var out []time.Time
	for _, d := range dates {
		for _, h := range closeHours(now) {
			if !hourOK(h) {
				continue
			}
			for _, m := range minutes {
				for _, s := range seconds {
					t := time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, now.Location())
					if WithinHour(t, now) {
						out = append(out, t)
					}
				}
			}
		}
	}
	return out
}
