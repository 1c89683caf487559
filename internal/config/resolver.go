package config

import (
	"slices"
	"strings"
)

// Resolve returns a sorted list of module IDs from the configuration.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ProviderIDs returns the provider modules in failover order:
// agent.providers when set, otherwise every configured provider.* module
// sorted by ID.
func ProviderIDs(cfg *Config) []string {
	if len(cfg.Agent.Providers) > 0 {
		return slices.Clone(cfg.Agent.Providers)
	}
	var ids []string
	for _, id := range Resolve(cfg) {
		if isProvider(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func isProvider(id string) bool {
	return strings.HasPrefix(id, "provider.")
}
