package schedule

import (
	"cmp"
	"slices"
	"time"
)

// Candidate is one computed firing of a job.
type Candidate struct {
	At      time.Time
	Job     string
	Command string
	Fired   bool
}

type candidateKey struct {
	job     string
	command string
	epoch   int64
}

func (c Candidate) key() candidateKey {
	return candidateKey{job: c.Job, command: c.Command, epoch: c.At.Unix()}
}

// Compute returns every candidate of jobs within the hour after now,
// deduplicated per job and sorted by time.
func Compute(jobs []Job, now time.Time) []Candidate {
	var out []Candidate
	seen := make(map[candidateKey]bool)
	for _, j := range jobs {
		for _, e := range j.Entries {
			for _, t := range e.Candidates(now) {
				c := Candidate{At: t, Job: j.Name, Command: j.Command}
				if seen[c.key()] {
					continue
				}
				seen[c.key()] = true
				out = append(out, c)
			}
		}
	}
	sortCandidates(out)
	return out
}

func sortCandidates(cs []Candidate) {
	slices.SortFunc(cs, func(a, b Candidate) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return cmp.Compare(a.Job, b.Job)
	})
}

// Window is the set of candidates for the upcoming hour. A candidate fires
// at most once. Window is not safe for concurrent use; the cron loop owns it.
type Window struct {
	entries []Candidate
}

// Recompute replaces the window with the candidates for the hour after now.
// Fired flags carry over. Unfired candidates already due stay, so they fire
// on the next Due call, unless their job or command is gone.
func (w *Window) Recompute(jobs []Job, now time.Time) {
	next := Compute(jobs, now)

	fired := make(map[candidateKey]bool, len(w.entries))
	for _, c := range w.entries {
		if c.Fired {
			fired[c.key()] = true
		}
	}
	for i := range next {
		if fired[next[i].key()] {
			next[i].Fired = true
		}
	}

	live := make(map[[2]string]bool, len(jobs))
	for _, j := range jobs {
		live[[2]string{j.Name, j.Command}] = true
	}
	for _, c := range w.entries {
		if !c.Fired && !c.At.After(now) && live[[2]string{c.Job, c.Command}] {
			next = append(next, c)
		}
	}

	sortCandidates(next)
	w.entries = next
}

// Expire drops unfired candidates at or before cutoff and reports how many
// were dropped. Fired candidates stay so they cannot fire again.
func (w *Window) Expire(cutoff time.Time) int {
	kept := w.entries[:0]
	dropped := 0
	for _, c := range w.entries {
		if !c.Fired && !c.At.After(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, c)
	}
	w.entries = kept
	return dropped
}

// Due marks and returns every unfired candidate whose time has come.
func (w *Window) Due(now time.Time) []Candidate {
	var out []Candidate
	for i := range w.entries {
		c := &w.entries[i]
		if c.Fired || c.At.After(now) {
			continue
		}
		c.Fired = true
		out = append(out, *c)
	}
	return out
}

// Entries returns a copy of the current candidates.
func (w *Window) Entries() []Candidate {
	return slices.Clone(w.entries)
}

// Pending returns the number of unfired candidates.
func (w *Window) Pending() int {
	n := 0
	for _, c := range w.entries {
		if !c.Fired {
			n++
		}
	}
	return n
}
