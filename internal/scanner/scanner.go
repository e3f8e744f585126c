// Package scanner keeps the ordered set of content sources consulted per topic.
package scanner

import (
	"fmt"
	"sync"

	"LearningCurator/internal/ports"
)

// Registry keeps fetchers in registration order; that order is the order
// of the aggregated output.
type Registry struct {
	mu       sync.RWMutex
	fetchers []ports.Fetcher
	index    map[string]int
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: map[string]int{}}
}

// Register appends a fetcher, or replaces one with the same name in place.
func (r *Registry) Register(fetcher ports.Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		r.index = map[string]int{}
	}
	if i, ok := r.index[fetcher.Name()]; ok {
		r.fetchers[i] = fetcher
		return
	}
	r.index[fetcher.Name()] = len(r.fetchers)
	r.fetchers = append(r.fetchers, fetcher)
}

// Resolve returns a fetcher by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Fetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.index[name]; ok {
		return r.fetchers[i], nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Fetchers returns a snapshot of the registered fetchers in order.
func (r *Registry) Fetchers() []ports.Fetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]ports.Fetcher(nil), r.fetchers...)
}

// Len reports how many fetchers are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.fetchers)
}
