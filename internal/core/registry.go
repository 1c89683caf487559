package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// catalog holds the modules compiled into the binary, keyed by ID. It is
// filled from init() functions and read while the config is resolved.
type catalog struct {
	mu      sync.RWMutex
	entries map[string]ModuleInfo
}

var registry = &catalog{entries: make(map[string]ModuleInfo)}

// RegisterModule records a module's ModuleInfo under its ID. Modules call it
// from init(); a duplicate ID or an info without New panics.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no New function", info.ID))
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.entries[string(info.ID)]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	registry.entries[string(info.ID)] = info
}

// GetModule looks up a compiled-in module, e.g. "provider.ollama".
func GetModule(id string) (ModuleInfo, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	info, ok := registry.entries[id]
	return info, ok
}

// GetModules lists every compiled-in module in ID order.
func GetModules() []ModuleInfo {
	return registry.list(func(string) bool { return true })
}

// GetModulesByNamespace lists the modules under one namespace in ID order,
// e.g. "tool" yields tool.arxiv, tool.duckduckgo, tool.mcp and so on.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."
	return registry.list(func(id string) bool { return strings.HasPrefix(id, prefix) })
}

func (c *catalog) list(keep func(id string) bool) []ModuleInfo {
	c.mu.RLock()
	out := make([]ModuleInfo, 0, len(c.entries))
	for id, info := range c.entries {
		if keep(id) {
			out = append(out, info)
		}
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func resetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	clear(registry.entries)
}
