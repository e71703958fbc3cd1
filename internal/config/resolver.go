package config

import "slices"

// Resolve returns the configured module IDs in load order: every module
// comes after the configured modules it requires, and ties are broken
// alphabetically so the order is deterministic. Modules caught in a
// requirement cycle are appended in alphabetical order.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	requires := make(map[string][]string, len(ids))
	for _, id := range ids {
		requires[id] = configuredRequirements(cfg, id)
	}

	order := make([]string, 0, len(ids))
	placed := make(map[string]bool, len(ids))
	for len(order) < len(ids) {
		progressed := false
		for _, id := range ids {
			if placed[id] {
				continue
			}
			ready := true
			for _, req := range requires[id] {
				if !placed[req] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, id)
				placed[id] = true
				progressed = true
				break
			}
		}
		if !progressed {
			for _, id := range ids {
				if !placed[id] {
					order = append(order, id)
				}
			}
			break
		}
	}
	return order
}

func configuredRequirements(cfg *Config, id string) []string {
	var out []string
	for _, req := range requirements(id) {
		if _, ok := cfg.Modules[string(req)]; ok && string(req) != id {
			out = append(out, string(req))
		}
	}
	return out
}
