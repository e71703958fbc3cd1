package app

import (
	"errors"
	"slices"
)

// errNoHost is returned when the configuration does not load the plugin
// host, which every other module depends on.
var errNoHost = errors.New("configuration must enable the plugin.host module")

// checkModules verifies the resolved module list before anything is
// provisioned.
func checkModules(ids []string) error {
	if !slices.Contains(ids, "plugin.host") {
		return errNoHost
	}
	return nil
}
