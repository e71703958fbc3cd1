package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Context holds the caller-supplied values for one execution, keyed by
// parameter. Values are strings, numbers, booleans or lists of those, as
// decoded from JSON.
type Context map[Parameter]any

// String returns the value of p rendered as a single string. Lists are
// joined with commas.
func (c Context) String(p Parameter) (string, error) {
	v, ok := c[p]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, p)
	}
	switch val := v.(type) {
	case []any, []string:
		list, err := c.Strings(p)
		if err != nil {
			return "", err
		}
		return strings.Join(list, ","), nil
	default:
		return scalar(val)
	}
}

// Strings returns the value of p as a list. A scalar becomes a one-element list.
func (c Context) Strings(p Parameter) ([]string, error) {
	v, ok := c[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, p)
	}
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, err := scalar(item)
			if err != nil {
				return nil, fmt.Errorf("command: parameter %s: %w", p, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalar(val)
		if err != nil {
			return nil, fmt.Errorf("command: parameter %s: %w", p, err)
		}
		return []string{s}, nil
	}
}

func scalar(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case nil:
		return "", nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case json.Number:
		return val.String(), nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("unsupported value %T", v)
		}
		return string(raw), nil
	}
}

// ErrUnknownContextKey is returned by DecodeContext for keys that name no parameter.
var ErrUnknownContextKey = errors.New("command: unknown context key")

// DecodeContext converts a decoded JSON object into a Context.
func DecodeContext(raw map[string]any) (Context, error) {
	ctx := make(Context, len(raw))
	for k, v := range raw {
		p, ok := ParseParameter(k)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownContextKey, k)
		}
		ctx[p] = v
	}
	return ctx, nil
}
