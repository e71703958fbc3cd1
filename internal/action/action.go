// Package action loads the actions a plugin exposes from its configuration
// file and answers catalog queries about them.
package action

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/flemzord/pluginhost/internal/command"
)

// Default endpoints for actions that do not name their own.
const (
	DefaultEndpoint = "/execute/"
	DefaultValidate = "/validate/"
)

var (
	// ErrInvalidName is returned for action names the platform cannot display.
	ErrInvalidName = errors.New("action: invalid name")
	// ErrInvalidEndpoint is returned for malformed endpoint or validate paths.
	ErrInvalidEndpoint = errors.New("action: invalid endpoint")
	// ErrMissingCommand is returned when an action has no command.
	ErrMissingCommand = errors.New("action: missing command")
	// ErrUnknownAction is returned by catalog lookups.
	ErrUnknownAction = errors.New("action: unknown action")
)

var (
	nameRE     = regexp.MustCompile(`^\w[\w\d ]*\w$`)
	endpointRE = regexp.MustCompile(`^/[\w-]+/$`)
)

// Action is one shell command a plugin exposes. Actions are immutable once
// built.
type Action struct {
	Name     string
	Endpoint string
	// Validate is the endpoint that runs the command with the validation
	// flag set.
	Validate string
	Template *command.Template
	Filter   Filter
}

// New validates the fields and parses the command template.
// Empty endpoint and validate fall back to the defaults.
func New(name, endpoint, cmd string, filter Filter, validate string) (*Action, error) {
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: %q must start and end with a word character and contain only word characters and spaces", ErrInvalidName, name)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if !endpointRE.MatchString(endpoint) {
		return nil, fmt.Errorf("%w: endpoint %q must look like /name/", ErrInvalidEndpoint, endpoint)
	}
	if validate == "" {
		validate = DefaultValidate
	}
	if !endpointRE.MatchString(validate) {
		return nil, fmt.Errorf("%w: validate %q must look like /name/", ErrInvalidEndpoint, validate)
	}
	if cmd == "" {
		return nil, fmt.Errorf("%w: action %q", ErrMissingCommand, name)
	}
	tpl, err := command.Parse(cmd)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return &Action{
		Name:     name,
		Endpoint: endpoint,
		Validate: validate,
		Template: tpl,
		Filter:   filter,
	}, nil
}

// Parameters returns the parameters the platform must know about to call
// the action. The job id is filled in by the host and is left out.
func (a *Action) Parameters() []command.Parameter {
	var out []command.Parameter
	for _, p := range a.Template.Parameters() {
		if p != command.JobID {
			out = append(out, p)
		}
	}
	return out
}

// Descriptor is the platform-facing view of an action.
type Descriptor struct {
	Endpoint   string              `json:"endpoint"`
	Name       string              `json:"name"`
	Parameters []command.Parameter `json:"parameters"`
	Filter     Filter              `json:"filter"`
}

// Describe returns the platform-facing view of the action.
func (a *Action) Describe() Descriptor {
	params := a.Parameters()
	if params == nil {
		params = []command.Parameter{}
	}
	return Descriptor{
		Endpoint:   a.Endpoint,
		Name:       a.Name,
		Parameters: params,
		Filter:     a.Filter,
	}
}
