/*
registry.go - Series source registration and lookup

PURPOSE:
  Domain packages (usage, revenue) register the Sources they provide. The
  api and factory packages resolve chart definitions and ad hoc queries to a
  Source by ID without importing every domain.

HOW IT WORKS:
  1. Domain packages implement Source
  2. cmd/server registers them on a Registry at startup
  3. Handlers look them up by ID ("usage", "gross_revenue", ...)

USAGE:
  reg := series.NewRegistry()
  reg.Register(usage.NewUsageSource(store))
  src, err := reg.Lookup("usage")

SEE ALSO:
  - types.go: Source interface
  - usage/source.go, revenue/source.go: Implementations
*/
package series

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// SOURCE REGISTRY
// =============================================================================

// Registry maps source IDs to Sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID()] = s
}

// Lookup finds a source by ID.
func (r *Registry) Lookup(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}
	return s, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// List returns all sources sorted by ID.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// ListByDomain returns sources of one domain sorted by ID.
func (r *Registry) ListByDomain(domain string) []Source {
	var result []Source
	for _, s := range r.List() {
		if s.Domain() == domain {
			result = append(result, s)
		}
	}
	return result
}
