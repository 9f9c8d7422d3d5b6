package repositories

import (
	"fmt"
	"sort"

	domainRepos "github.com/rios0rios0/depflow/internal/domain/repositories"
)

// HostingFactory is a constructor function that creates a HostingRepository given an auth token.
type HostingFactory func(token string) domainRepos.HostingRepository

// HostingRegistry manages all registered code hosting implementations.
type HostingRegistry struct {
	factories map[string]HostingFactory
}

// NewHostingRegistry creates an empty hosting registry.
func NewHostingRegistry() *HostingRegistry {
	return &HostingRegistry{
		factories: make(map[string]HostingFactory),
	}
}

// Register adds a hosting factory under the given name (e.g. "github").
func (r *HostingRegistry) Register(name string, factory HostingFactory) {
	r.factories[name] = factory
}

// Get returns a configured hosting instance for the given name and token.
func (r *HostingRegistry) Get(name, token string) (domainRepos.HostingRepository, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown hosting provider: %q", name)
	}
	return factory(token), nil
}

// Names returns the sorted list of registered hosting names.
func (r *HostingRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
