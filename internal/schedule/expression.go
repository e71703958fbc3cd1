package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var exprParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Expression is a standard cron expression ("*/5 * * * *", optionally with a
// leading seconds field, or a descriptor such as "@hourly").
type Expression struct {
	source string
	sched  cron.Schedule
}

// ParseExpression parses a cron expression.
func ParseExpression(s string) (*Expression, error) {
	sched, err := exprParser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", s, err)
	}
	return &Expression{source: s, sched: sched}, nil
}

func (e *Expression) String() string { return e.source }

// Candidates implements Entry.
func (e *Expression) Candidates(now time.Time) []time.Time {
	var out []time.Time
	for t := e.sched.Next(now); !t.IsZero() && WithinHour(t, now); t = e.sched.Next(t) {
		out = append(out, t)
	}
	return out
}
