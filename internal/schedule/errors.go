package schedule

import "fmt"

// ParseError reports a malformed schedule entry. The entry is skipped; the
// rest of the job's schedule still applies.
type ParseError struct {
	Job   string
	Entry string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("schedule: job %q: %v", e.Job, e.Err)
	}
	return fmt.Sprintf("schedule: job %q: entry %q: %v", e.Job, e.Entry, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
