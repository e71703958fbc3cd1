package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// variable matches ${NAME}, ${NAME:-fallback} and ${NAME:?message}.
var variable = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}`)

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse substitutes environment variables in raw and decodes the result.
// Unknown top-level keys are rejected; module blocks are decoded later by
// their modules.
func Parse(raw []byte) (*Config, error) {
	return parse(raw, os.LookupEnv)
}

func parse(raw []byte, lookup func(string) (string, bool)) (*Config, error) {
	expanded, err := substitute(raw, lookup)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return &cfg, nil
}

// substitute replaces variable references. ${NAME:-x} falls back to x when
// NAME is unset or empty; ${NAME:?msg} fails with msg in that case. A bare
// ${NAME} must be set. Every failure is reported, not just the first.
func substitute(raw []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var errs []error
	out := variable.ReplaceAllFunc(raw, func(ref []byte) []byte {
		m := variable.FindSubmatch(ref)
		name, op, arg := string(m[1]), string(m[2]), string(m[3])

		value, set := lookup(name)
		if set && (value != "" || op == "") {
			return []byte(value)
		}
		switch op {
		case "-":
			return []byte(arg)
		case "?":
			if arg == "" {
				arg = "required"
			}
			errs = append(errs, fmt.Errorf("${%s}: %s", name, arg))
		default:
			errs = append(errs, fmt.Errorf("${%s} is not set", name))
		}
		return ref
	})
	return out, errors.Join(errs...)
}
