package action

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	keyActions = "Actions"
	keyGlobals = "Global Configurations"
)

const defaultPluginName = "Unnamed Plugin"

// Catalog is the parsed plugin configuration: the plugin name, its actions
// in file order, the flattened global settings and the raw cron section.
type Catalog struct {
	PluginName string
	Globals    map[string]any
	// CronJobs is the undecoded "Cron Jobs" node; zero when absent.
	CronJobs yaml.Node

	actions []*Action
	byName  map[string]*Action
}

type rawFile struct {
	PluginName string    `yaml:"Plugin Name"`
	Actions    yaml.Node `yaml:"Actions"`
	Globals    yaml.Node `yaml:"Global Configurations"`
	CronJobs   yaml.Node `yaml:"Cron Jobs"`
}

type rawAction struct {
	Endpoint string    `yaml:"endpoint"`
	Command  string    `yaml:"command"`
	Validate string    `yaml:"validate"`
	Filter   yaml.Node `yaml:"filter"`
}

// Load reads and parses a plugin configuration file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("action: reading %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("action: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a plugin configuration. Every invalid action is reported;
// the catalog is only returned when all of them are valid.
func Parse(data []byte) (*Catalog, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	c := &Catalog{
		PluginName: raw.PluginName,
		CronJobs:   raw.CronJobs,
		byName:     make(map[string]*Action),
	}
	if c.PluginName == "" {
		c.PluginName = defaultPluginName
	}

	globals, err := flattenGlobals(&raw.Globals)
	if err != nil {
		return nil, err
	}
	c.Globals = globals

	if raw.Actions.Kind == 0 {
		return c, nil
	}
	if raw.Actions.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: line %d: expected a mapping", keyActions, raw.Actions.Line)
	}

	var errs []error
	for i := 0; i+1 < len(raw.Actions.Content); i += 2 {
		name := raw.Actions.Content[i].Value
		a, err := parseAction(name, raw.Actions.Content[i+1])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byName[name]; dup {
			errs = append(errs, fmt.Errorf("action %q: defined twice", name))
			continue
		}
		c.actions = append(c.actions, a)
		c.byName[name] = a
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

func parseAction(name string, node *yaml.Node) (*Action, error) {
	var raw rawAction
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	filter, err := parseFilter(&raw.Filter)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return New(name, raw.Endpoint, raw.Command, filter, raw.Validate)
}

// Actions returns the actions in file order.
func (c *Catalog) Actions() []*Action {
	out := make([]*Action, len(c.actions))
	copy(out, c.actions)
	return out
}

// Lookup finds an action by name.
func (c *Catalog) Lookup(name string) (*Action, error) {
	a, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

// ByEndpoint returns the actions routed through path, either as their
// execute endpoint or their validate endpoint.
func (c *Catalog) ByEndpoint(path string) (execute, validate []*Action) {
	for _, a := range c.actions {
		if a.Endpoint == path {
			execute = append(execute, a)
		}
		if a.Validate == path {
			validate = append(validate, a)
		}
	}
	return execute, validate
}

// HasCronJobs reports whether the configuration declares any cron section.
func (c *Catalog) HasCronJobs() bool {
	return c.CronJobs.Kind != 0 && len(c.CronJobs.Content) > 0
}

// Configuration is the document the platform reads to build its menus.
type Configuration struct {
	Groups             []string     `json:"groups"`
	Actions            []Descriptor `json:"actions"`
	HasVisibleSettings bool         `json:"has_visible_settings"`
}

// Configuration describes the catalog for the platform.
func (c *Catalog) Configuration() Configuration {
	cfg := Configuration{
		Groups:             []string{},
		Actions:            make([]Descriptor, 0, len(c.actions)),
		HasVisibleSettings: true,
	}
	for _, a := range c.actions {
		cfg.Actions = append(cfg.Actions, a.Describe())
	}
	return cfg
}

// flattenGlobals lifts settings out of "label ..." groups and replaces
// {value: ...} sections with their value.
func flattenGlobals(node *yaml.Node) (map[string]any, error) {
	out := make(map[string]any)
	if node.Kind == 0 {
		return out, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: line %d: expected a mapping", keyGlobals, node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		if strings.HasPrefix(strings.ToLower(key), "label ") {
			sub, err := flattenGlobals(val)
			if err != nil {
				return nil, err
			}
			for k, v := range sub {
				out[k] = v
			}
			continue
		}
		v, err := settingValue(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", keyGlobals, key, err)
		}
		out[key] = v
	}
	return out, nil
}

func settingValue(node *yaml.Node) (any, error) {
	var section map[string]any
	if node.Kind != yaml.MappingNode || node.Decode(&section) != nil {
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	v, ok := section["value"]
	if !ok {
		return section, nil
	}
	if v == nil {
		return zeroLike(section), nil
	}
	return v, nil
}

// zeroLike returns the zero value matching the type of a section's example
// or default, or nil when neither is set.
func zeroLike(section map[string]any) any {
	for _, key := range []string{"example", "default"} {
		switch section[key].(type) {
		case []any:
			return []any{}
		case map[string]any:
			return map[string]any{}
		case string:
			return ""
		case int:
			return 0
		case float64:
			return 0.0
		}
	}
	return nil
}
