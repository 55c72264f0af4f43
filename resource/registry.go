package resource

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// The registry is explicit: a connector package registers its Resource from
// a constructor called by the binary, never from init side effects on import
// order alone.
var (
	registryMu sync.RWMutex
	registry   = map[string]*Resource{}
)

// Register adds a resource to the process registry. Registering the same
// name twice panics.
func Register(r *Resource) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[r.Name]; ok {
		panic(errors.Errorf("resource %q already registered", r.Name))
	}
	registry[r.Name] = r
}

// Get looks up a registered resource.
func Get(name string) (*Resource, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r, ok
}

// Names returns the registered resource names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset clears the registry. Tests use it between cases.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]*Resource{}
}
