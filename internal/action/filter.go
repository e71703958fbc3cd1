package action

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ListedWithin is a place in the platform UI where an action is offered.
type ListedWithin string

const (
	ListedMain    ListedWithin = "main"
	ListedBrowse  ListedWithin = "browse"
	ListedDetails ListedWithin = "details"
	ListedSearch  ListedWithin = "search"
	ListedTags    ListedWithin = "tags"
)

// AppliesTo is a selection kind an action accepts.
type AppliesTo string

const (
	AppliesFiles        AppliesTo = "files"
	AppliesFolders      AppliesTo = "folders"
	AppliesSequences    AppliesTo = "sequences"
	AppliesSingleVolume AppliesTo = "single_volume"
)

// VolumeType is a volume kind an action is offered on. The configuration
// spells them TYPE_NFS, TYPE_S3 and TYPE_VFS; the wire form is lower case
// without the prefix.
type VolumeType string

const (
	VolumeNFS VolumeType = "nfs"
	VolumeS3  VolumeType = "s3"
	VolumeVFS VolumeType = "vfs"
)

var (
	listedWithinValues = []ListedWithin{ListedMain, ListedBrowse, ListedDetails, ListedSearch, ListedTags}
	appliesToValues    = []AppliesTo{AppliesFiles, AppliesFolders, AppliesSequences, AppliesSingleVolume}
	volumeTypeValues   = []VolumeType{VolumeNFS, VolumeS3, VolumeVFS}
)

// Filter narrows where and for whom the platform offers an action.
type Filter struct {
	Groups        []string       `json:"groups"`
	Tags          []string       `json:"tags"`
	TagCategories []string       `json:"tag_categories"`
	ListedWithin  []ListedWithin `json:"listed_within"`
	AppliesTo     []AppliesTo    `json:"applies_to"`
	VolumeTypes   []VolumeType   `json:"volume_types"`
	MaxSelections int            `json:"max_selections"`
	PathRegex     string         `json:"path_regex"`
}

// DefaultFilter returns the filter used for keys an action leaves out.
func DefaultFilter() Filter {
	return Filter{
		Groups:        []string{},
		Tags:          []string{},
		TagCategories: []string{},
		ListedWithin:  []ListedWithin{ListedBrowse},
		AppliesTo:     []AppliesTo{},
		VolumeTypes:   []VolumeType{VolumeVFS},
		MaxSelections: 1,
	}
}

type rawFilter struct {
	Groups        *yaml.Node      `yaml:"groups"`
	Tags          *[]string       `yaml:"tags"`
	TagCategories *[]string       `yaml:"tag_categories"`
	ListedWithin  *[]string       `yaml:"listed_within"`
	Applies       map[string]bool `yaml:"applies"`
	VolumeTypes   *[]string       `yaml:"volume_types"`
	MaxSelections *int            `yaml:"max_selections"`
	PathRegex     *string         `yaml:"path_regex"`
}

// parseFilter decodes an action's filter node, filling defaults for
// missing keys. Enum values are matched case-insensitively.
func parseFilter(node *yaml.Node) (Filter, error) {
	f := DefaultFilter()
	if node == nil || node.Kind == 0 {
		return f, nil
	}

	var raw rawFilter
	if err := node.Decode(&raw); err != nil {
		return Filter{}, fmt.Errorf("filter: %w", err)
	}

	if raw.Groups != nil {
		groups, err := decodeGroups(raw.Groups)
		if err != nil {
			return Filter{}, err
		}
		f.Groups = groups
	}
	if raw.Tags != nil {
		f.Tags = *raw.Tags
	}
	if raw.TagCategories != nil {
		f.TagCategories = *raw.TagCategories
	}
	if raw.ListedWithin != nil {
		vals, err := parseEnums(*raw.ListedWithin, "listed_within", listedWithinValues, strings.ToLower)
		if err != nil {
			return Filter{}, err
		}
		f.ListedWithin = vals
	}
	if raw.Applies != nil {
		keys := make([]string, 0, len(raw.Applies))
		for k, on := range raw.Applies {
			if on {
				keys = append(keys, k)
			}
		}
		vals, err := parseEnums(keys, "applies", appliesToValues, strings.ToLower)
		if err != nil {
			return Filter{}, err
		}
		slices.SortFunc(vals, func(a, b AppliesTo) int {
			return slices.Index(appliesToValues, a) - slices.Index(appliesToValues, b)
		})
		f.AppliesTo = vals
	}
	if raw.VolumeTypes != nil {
		vals, err := parseEnums(*raw.VolumeTypes, "volume_types", volumeTypeValues, normalizeVolumeType)
		if err != nil {
			return Filter{}, err
		}
		f.VolumeTypes = vals
	}
	if raw.MaxSelections != nil {
		if *raw.MaxSelections < 0 {
			return Filter{}, fmt.Errorf("filter: max_selections must not be negative, got %d", *raw.MaxSelections)
		}
		f.MaxSelections = *raw.MaxSelections
	}
	if raw.PathRegex != nil {
		f.PathRegex = *raw.PathRegex
	}
	return f, nil
}

// decodeGroups accepts a list of groups or a space-separated string.
func decodeGroups(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return strings.Fields(node.Value), nil
	case yaml.SequenceNode:
		var groups []string
		if err := node.Decode(&groups); err != nil {
			return nil, fmt.Errorf("filter: groups: %w", err)
		}
		return groups, nil
	default:
		return nil, fmt.Errorf("filter: groups: line %d: expected a string or a list", node.Line)
	}
}

func normalizeVolumeType(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), "type_")
}

func parseEnums[T ~string](in []string, key string, allowed []T, norm func(string) string) ([]T, error) {
	out := make([]T, 0, len(in))
	for _, s := range in {
		v := T(norm(strings.TrimSpace(s)))
		if !slices.Contains(allowed, v) {
			return nil, fmt.Errorf("filter: %s: unknown value %q", key, s)
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out, nil
}
