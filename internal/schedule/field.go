// Package schedule evaluates recurring time specifications into firing
// candidates for the upcoming hour.
package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Unit identifies a calendar field and its valid range.
type Unit int

// Calendar units.
const (
	Year Unit = iota
	Month
	Day
	Hour
	Minute
	Second
)

func (u Unit) String() string {
	return [...]string{"year", "month", "day", "hour", "minute", "second"}[u]
}

// bounds returns the valid range for a unit. Years accept any four-digit value.
func (u Unit) bounds() (lo, hi int) {
	switch u {
	case Year:
		return 1000, 9999
	case Month:
		return 1, 12
	case Day:
		return 1, 31
	case Hour:
		return 0, 23
	default:
		return 0, 59
	}
}

const maxYearStep = 100

// Field is one parsed calendar field: a literal, a comma set, a wildcard or
// a base/step repeat.
type Field struct {
	unit   Unit
	set    []int
	all    bool
	step   int
	base   int
	hasSet bool
}

// ParseField parses s for unit u. Accepted forms: "7", "1,15,30", "*",
// "*/10" and "5/10". A step repeat starts from its base, or from the
// lowest valid value when the base is "*"; for years that lowest value is
// the current year at evaluation time.
func ParseField(u Unit, s string) (Field, error) {
	s = strings.TrimSpace(s)
	lo, hi := u.bounds()
	f := Field{unit: u, base: -1}

	switch {
	case s == "":
		return Field{}, fmt.Errorf("empty %s field", u)

	case s == "*":
		f.all = true
		return f, nil

	case strings.Contains(s, "/"):
		baseStr, stepStr, _ := strings.Cut(s, "/")
		if stepStr == "" {
			return Field{}, fmt.Errorf("no number follows '/' in %s field %q", u, s)
		}
		step, err := strconv.Atoi(stepStr)
		if err != nil || step < 1 {
			return Field{}, fmt.Errorf("step in %s field %q is not a number of at least 1", u, s)
		}
		maxStep := hi
		if u == Year {
			maxStep = maxYearStep
		}
		if step > maxStep {
			return Field{}, fmt.Errorf("step in %s field %q is out of range", u, s)
		}
		f.step = step
		if baseStr != "*" {
			base, err := strconv.Atoi(baseStr)
			if err != nil || base < lo || base > hi {
				return Field{}, fmt.Errorf("base in %s field %q is not a valid value", u, s)
			}
			f.base = base
		}
		return f, nil

	default:
		for part := range strings.SplitSeq(s, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return Field{}, fmt.Errorf("%s field %q contains a non-integer", u, s)
			}
			if v < lo || v > hi {
				return Field{}, fmt.Errorf("%s field %q contains %d, out of range %d-%d", u, s, v, lo, hi)
			}
			if !slices.Contains(f.set, v) {
				f.set = append(f.set, v)
			}
		}
		slices.Sort(f.set)
		f.hasSet = true
		return f, nil
	}
}

// MustParseField is ParseField for constant inputs. It panics on error.
func MustParseField(u Unit, s string) Field {
	f, err := ParseField(u, s)
	if err != nil {
		panic(err)
	}
	return f
}

// Values lists the matching values in [from, to], ascending. from is the
// starting point for "*" and "*/n"; an explicit base overrides it.
func (f Field) Values(from, to int) []int {
	lo, hi := f.unit.bounds()
	from = max(from, lo)
	to = min(to, hi)

	var out []int
	switch {
	case f.hasSet:
		for _, v := range f.set {
			if v >= from && v <= to {
				out = append(out, v)
			}
		}
	case f.step > 0:
		start := from
		if f.base >= 0 {
			start = f.base
		}
		for v := start; v <= to; v += f.step {
			out = append(out, v)
		}
	case f.all:
		for v := from; v <= to; v++ {
			out = append(out, v)
		}
	}
	return out
}

// Matches reports whether v is produced by the field, evaluating step
// repeats from `from`.
func (f Field) Matches(v, from int) bool {
	lo, hi := f.unit.bounds()
	if v < lo || v > hi {
		return false
	}
	switch {
	case f.hasSet:
		return slices.Contains(f.set, v)
	case f.step > 0:
		start := max(from, lo)
		if f.base >= 0 {
			start = f.base
		}
		return v >= start && (v-start)%f.step == 0
	default:
		return f.all
	}
}
