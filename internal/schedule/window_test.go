package schedule

import (
	"testing"
	"time"
)

func at(day, hour, minute, second int) time.Time {
	return time.Date(2026, time.June, day, hour, minute, second, 0, time.UTC)
}

func day15Job(t *testing.T) Job {
	t.Helper()
	y, err := ParseYearly(YearlySpec{
		Months:  []string{"*"},
		Days:    []string{"15"},
		Hours:   []string{"9"},
		Minutes: []string{"0"},
		Seconds: []string{"0"},
	})
	if err != nil {
		t.Fatalf("ParseYearly: %v", err)
	}
	return Job{Name: "report", Command: "/opt/report.sh", Entries: []Entry{y}}
}

func TestWithinHour(t *testing.T) {
	t.Parallel()

	now := at(15, 8, 30, 0)
	tests := []struct {
		c    time.Time
		want bool
	}{
		{at(15, 9, 0, 0), true},
		{at(15, 9, 30, 0), true},
		{at(15, 9, 30, 1), false},
		{now, false},
		{at(15, 8, 29, 59), false},
	}
	for _, tt := range tests {
		if got := WithinHour(tt.c, now); got != tt.want {
			t.Errorf("WithinHour(%v) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestWindow_FiresOnceBetween0830And0905(t *testing.T) {
	t.Parallel()

	jobs := []Job{day15Job(t)}
	var w Window

	start := at(15, 8, 30, 0)
	end := at(15, 9, 5, 0)
	lastRecompute := time.Time{}
	fired := 0
	for now := start; !now.After(end); now = now.Add(100 * time.Millisecond * 37) {
		if now.Sub(lastRecompute) >= time.Minute {
			w.Recompute(jobs, now)
			lastRecompute = now
		}
		for _, c := range w.Due(now) {
			fired++
			if !c.At.Equal(at(15, 9, 0, 0)) {
				t.Errorf("fired candidate at %v, want 09:00:00", c.At)
			}
		}
	}
	if fired != 1 {
		t.Errorf("fired %d times, want 1", fired)
	}
}

func TestWindow_RecomputeAtCandidateKeepsPending(t *testing.T) {
	t.Parallel()

	jobs := []Job{day15Job(t)}
	var w Window
	w.Recompute(jobs, at(15, 8, 59, 0))
	w.Recompute(jobs, at(15, 9, 0, 0))

	due := w.Due(at(15, 9, 0, 0))
	if len(due) != 1 {
		t.Fatalf("due = %v, want the 09:00 candidate", due)
	}
	w.Recompute(jobs, at(15, 9, 1, 0))
	if got := w.Due(at(15, 9, 1, 0)); len(got) != 0 {
		t.Errorf("candidate refired: %v", got)
	}
}

func TestWindow_CandidateEqualToNowIsMissed(t *testing.T) {
	t.Parallel()

	jobs := []Job{day15Job(t)}
	var w Window
	w.Recompute(jobs, at(15, 9, 0, 0))

	if n := w.Pending(); n != 0 {
		t.Errorf("pending = %d, want 0: a candidate at exactly now is missed", n)
	}
	if got := w.Due(at(15, 9, 0, 1)); len(got) != 0 {
		t.Errorf("due = %v, want none", got)
	}
}

func TestWindow_RecomputeDropsRemovedJob(t *testing.T) {
	t.Parallel()

	jobs := []Job{day15Job(t)}
	var w Window
	w.Recompute(jobs, at(15, 8, 59, 0))
	w.Recompute(nil, at(15, 9, 0, 0))

	if got := w.Due(at(15, 9, 0, 0)); len(got) != 0 {
		t.Errorf("removed job fired: %v", got)
	}
}

func TestWindow_ExpireDropsMissedCandidates(t *testing.T) {
	t.Parallel()

	jobs := []Job{day15Job(t)}
	var w Window
	w.Recompute(jobs, at(15, 8, 59, 0))
	// Hours later the missed 09:00 candidate is still carried.
	w.Recompute(jobs, at(15, 14, 0, 0))
	if n := w.Pending(); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	if n := w.Expire(at(15, 13, 59, 59)); n != 1 {
		t.Errorf("Expire dropped %d, want 1", n)
	}
	if got := w.Due(at(15, 14, 0, 0)); len(got) != 0 {
		t.Errorf("expired candidate fired: %v", got)
	}
}

func TestWindow_ExpireKeepsLaterAndFired(t *testing.T) {
	t.Parallel()

	jobs := []Job{day15Job(t)}
	var w Window
	w.Recompute(jobs, at(15, 8, 59, 0))
	if n := w.Expire(at(15, 8, 59, 30)); n != 0 {
		t.Errorf("Expire dropped %d future candidates", n)
	}
	if got := w.Due(at(15, 9, 0, 0)); len(got) != 1 {
		t.Fatalf("due = %v, want one candidate", got)
	}
	w.Expire(at(15, 9, 0, 1))
	w.Recompute(jobs, at(15, 9, 0, 1))
	if got := w.Due(at(15, 9, 0, 2)); len(got) != 0 {
		t.Errorf("fired candidate fired again: %v", got)
	}
}

func TestCompute_MidnightRollover(t *testing.T) {
	t.Parallel()

	y, err := ParseYearly(YearlySpec{Hours: []string{"0"}, Minutes: []string{"15"}})
	if err != nil {
		t.Fatal(err)
	}
	jobs := []Job{{Name: "nightly", Command: "run", Entries: []Entry{y}}}

	got := Compute(jobs, at(15, 23, 30, 0))
	if len(got) != 1 || !got[0].At.Equal(at(16, 0, 15, 0)) {
		t.Errorf("Compute = %v, want tomorrow 00:15", got)
	}
}

func TestCompute_DeduplicatesPerJob(t *testing.T) {
	t.Parallel()

	a, _ := ParseDateTime("*-*-15 9:00:00")
	b, _ := ParseDateTime("2026-06-15 09")
	jobs := []Job{{Name: "x", Command: "run", Entries: []Entry{a, b}}}

	if got := Compute(jobs, at(15, 8, 30, 0)); len(got) != 1 {
		t.Errorf("Compute = %v, want one candidate", got)
	}
}
