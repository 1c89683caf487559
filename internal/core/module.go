package core

import "strings"

// ModuleID identifies a module, namespaced with dots
// (e.g. "provider.openai_compatible", "tool.duckduckgo").
type ModuleID string

// Namespace returns the part before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part after the first dot, or the whole ID.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is implemented by every scout module. Optional lifecycle
// behavior is added through Configurable, Provisioner, Validator, Starter
// and Stopper.
type Module interface {
	ModuleInfo() ModuleInfo
}
