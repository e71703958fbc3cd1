package schedule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const unnamedJob = "CronJob 1"

// Job is one named cron job from the plugin configuration.
type Job struct {
	Name    string
	Command string
	Entries []Entry
	// RunOnStart runs the command once when the cron loop starts.
	RunOnStart bool
}

type rawJob struct {
	Command   string    `yaml:"Command"`
	ExecuteOn yaml.Node `yaml:"Execute On"`
}

type rawExecuteOn struct {
	Start      bool        `yaml:"Start"`
	DateTimes  []string    `yaml:"DateTimes"`
	Yearly     *rawYearly  `yaml:"Yearly"`
	Expression stringOrSeq `yaml:"Expression"`
}

type rawYearly struct {
	Months  stringOrSeq `yaml:"Months"`
	Days    stringOrSeq `yaml:"Days"`
	Hours   stringOrSeq `yaml:"Hours"`
	Minutes stringOrSeq `yaml:"Minutes"`
	Seconds stringOrSeq `yaml:"Seconds"`
}

// stringOrSeq decodes either a scalar or a sequence of scalars.
type stringOrSeq []string

func (s *stringOrSeq) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, c := range node.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a scalar", c.Line)
			}
			out = append(out, c.Value)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a scalar or a list", node.Line)
	}
}

// ParseJobs decodes the "Cron Jobs" section of a plugin configuration.
// Top-level "Command" and "Execute On" keys form a job named "CronJob 1".
// Malformed entries are returned as *ParseError values and skipped; a job
// with no command or no valid entry is still returned when it runs on start.
func ParseJobs(section *yaml.Node) ([]Job, []error) {
	if section == nil || section.Kind == 0 {
		return nil, nil
	}
	if section.Kind == yaml.DocumentNode && len(section.Content) > 0 {
		section = section.Content[0]
	}
	if section.Kind != yaml.MappingNode {
		return nil, []error{&ParseError{Err: fmt.Errorf("line %d: cron jobs must be a mapping", section.Line)}}
	}

	var (
		jobs []Job
		errs []error
	)
	unnamed := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(section.Content); i += 2 {
		key, val := section.Content[i], section.Content[i+1]
		if key.Value == "Command" || key.Value == "Execute On" {
			unnamed.Content = append(unnamed.Content, key, val)
			continue
		}
		job, jobErrs := parseJob(key.Value, val)
		errs = append(errs, jobErrs...)
		if job != nil {
			jobs = append(jobs, *job)
		}
	}
	if len(unnamed.Content) > 0 {
		job, jobErrs := parseJob(unnamedJob, unnamed)
		errs = append(errs, jobErrs...)
		if job != nil {
			jobs = append(jobs, *job)
		}
	}
	return jobs, errs
}

func parseJob(name string, node *yaml.Node) (*Job, []error) {
	var raw rawJob
	if err := node.Decode(&raw); err != nil {
		return nil, []error{&ParseError{Job: name, Err: err}}
	}
	if strings.TrimSpace(raw.Command) == "" {
		return nil, []error{&ParseError{Job: name, Err: fmt.Errorf("no command")}}
	}

	job := &Job{Name: name, Command: raw.Command}
	var errs []error
	fail := func(entry string, err error) {
		errs = append(errs, &ParseError{Job: name, Entry: entry, Err: err})
	}

	switch raw.ExecuteOn.Kind {
	case 0:
		return nil, []error{&ParseError{Job: name, Err: fmt.Errorf("no scheduled executions")}}

	case yaml.ScalarNode:
		dt, err := ParseDateTime(raw.ExecuteOn.Value)
		if err != nil {
			fail(raw.ExecuteOn.Value, err)
			break
		}
		job.Entries = append(job.Entries, dt)

	case yaml.MappingNode:
		var on rawExecuteOn
		if err := raw.ExecuteOn.Decode(&on); err != nil {
			return nil, []error{&ParseError{Job: name, Err: err}}
		}
		job.RunOnStart = on.Start
		for _, s := range on.DateTimes {
			dt, err := ParseDateTime(s)
			if err != nil {
				fail(s, err)
				continue
			}
			job.Entries = append(job.Entries, dt)
		}
		if on.Yearly != nil {
			y, err := ParseYearly(YearlySpec{
				Months:  on.Yearly.Months,
				Days:    on.Yearly.Days,
				Hours:   on.Yearly.Hours,
				Minutes: on.Yearly.Minutes,
				Seconds: on.Yearly.Seconds,
			})
			if err != nil {
				fail("Yearly", err)
			} else {
				job.Entries = append(job.Entries, y)
			}
		}
		for _, s := range on.Expression {
			e, err := ParseExpression(s)
			if err != nil {
				fail(s, err)
				continue
			}
			job.Entries = append(job.Entries, e)
		}

	default:
		return nil, []error{&ParseError{Job: name, Err: fmt.Errorf("line %d: unsupported Execute On", raw.ExecuteOn.Line)}}
	}

	if len(job.Entries) == 0 && !job.RunOnStart {
		if len(errs) == 0 {
			errs = append(errs, &ParseError{Job: name, Err: fmt.Errorf("no scheduled executions")})
		}
		return nil, errs
	}
	return job, errs
}
