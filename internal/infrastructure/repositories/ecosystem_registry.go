package repositories

import (
	"github.com/rios0rios0/depflow/internal/domain/entities"
	domainRepos "github.com/rios0rios0/depflow/internal/domain/repositories"
)

// EcosystemRegistry keeps the registered ecosystems in registration order, which is also the
// order their discovered updates are merged in.
type EcosystemRegistry struct {
	ecosystems []domainRepos.EcosystemRepository
}

// NewEcosystemRegistry creates a registry holding the given ecosystems.
func NewEcosystemRegistry(ecosystems ...domainRepos.EcosystemRepository) *EcosystemRegistry {
	registry := &EcosystemRegistry{}
	for _, ecosystem := range ecosystems {
		registry.Register(ecosystem)
	}
	return registry
}

// Register adds an ecosystem, replacing a previous one with the same name in place.
func (r *EcosystemRegistry) Register(ecosystem domainRepos.EcosystemRepository) {
	for i, existing := range r.ecosystems {
		if existing.Name() == ecosystem.Name() {
			r.ecosystems[i] = ecosystem
			return
		}
	}
	r.ecosystems = append(r.ecosystems, ecosystem)
}

// Get returns the ecosystem with the given name, or nil if not registered.
func (r *EcosystemRegistry) Get(name entities.Ecosystem) domainRepos.EcosystemRepository {
	for _, ecosystem := range r.ecosystems {
		if ecosystem.Name() == name {
			return ecosystem
		}
	}
	return nil
}

// All returns every registered ecosystem in registration order.
func (r *EcosystemRegistry) All() []domainRepos.EcosystemRepository {
	result := make([]domainRepos.EcosystemRepository, len(r.ecosystems))
	copy(result, r.ecosystems)
	return result
}

// Names returns the registered ecosystem names in registration order.
func (r *EcosystemRegistry) Names() []entities.Ecosystem {
	names := make([]entities.Ecosystem, 0, len(r.ecosystems))
	for _, ecosystem := range r.ecosystems {
		names = append(names, ecosystem.Name())
	}
	return names
}
