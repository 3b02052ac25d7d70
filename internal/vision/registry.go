package vision

import (
	"fmt"
	"sort"
	"sync"

	"framewatch/internal/frame"
)

// PersisterOptions configures a backend-provided Persister.
type PersisterOptions struct {
	VideoPath   string
	FPS         float64
	JPEGQuality int
}

// Backend is a named set of collaborators. Capture may be nil when the
// backend cannot drive a camera device; NewPersister may be nil when the
// backend has no codecs of its own.
type Backend struct {
	Capture      Capture
	Transformer  Transformer
	NewPersister func(PersisterOptions) Persister
	// VideoExt is the file extension of videos written by NewPersister.
	VideoExt string
}

// BackendFactory builds a Backend whose allocations are accounted against
// ledger.
type BackendFactory func(ledger *frame.Ledger) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendFactory{}
)

// Register makes a backend available by name. It panics on duplicates.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("vision: backend %q registered twice", name))
	}
	registry[name] = factory
}

// Open builds the named backend.
func Open(name string, ledger *frame.Ledger) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Backend{}, fmt.Errorf("vision backend %q is not available in this build (have %v)", name, Backends())
	}
	return factory(ledger)
}

// Backends lists registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
