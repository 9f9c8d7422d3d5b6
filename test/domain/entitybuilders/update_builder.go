//go:build integration || unit || test

package entitybuilders //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"github.com/rios0rios0/depflow/internal/domain/entities"
	testkit "github.com/rios0rios0/testkit/pkg/test"
)

// UpdateBuilder helps create test updates with a fluent interface.
type UpdateBuilder struct {
	*testkit.BaseBuilder
	ecosystem    entities.Ecosystem
	name         string
	current      string
	latest       string
	manifestPath string
}

// NewUpdateBuilder creates a new update builder with sensible defaults.
func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{
		BaseBuilder:  testkit.NewBaseBuilder(),
		ecosystem:    entities.EcosystemRust,
		name:         "serde",
		current:      "1.0.0",
		latest:       "1.1.0",
		manifestPath: "Cargo.toml",
	}
}

// WithEcosystem sets the ecosystem.
func (b *UpdateBuilder) WithEcosystem(ecosystem entities.Ecosystem) *UpdateBuilder {
	b.ecosystem = ecosystem
	return b
}

// WithName sets the dependency name.
func (b *UpdateBuilder) WithName(name string) *UpdateBuilder {
	b.name = name
	return b
}

// WithVersions sets the current and latest versions.
func (b *UpdateBuilder) WithVersions(current, latest string) *UpdateBuilder {
	b.current = current
	b.latest = latest
	return b
}

// WithManifestPath sets the manifest path.
func (b *UpdateBuilder) WithManifestPath(path string) *UpdateBuilder {
	b.manifestPath = path
	return b
}

// Build creates the update (satisfies testkit.Builder interface).
func (b *UpdateBuilder) Build() interface{} {
	return b.BuildUpdate()
}

// BuildUpdate creates the update with a concrete return type.
func (b *UpdateBuilder) BuildUpdate() entities.Update {
	return entities.Update{
		Ecosystem:      b.ecosystem,
		Name:           b.name,
		CurrentVersion: b.current,
		LatestVersion:  b.latest,
		ManifestPath:   b.manifestPath,
	}
}

// Reset clears the builder state, allowing it to be reused.
func (b *UpdateBuilder) Reset() testkit.Builder {
	b.BaseBuilder.Reset()
	b.ecosystem = entities.EcosystemRust
	b.name = "serde"
	b.current = "1.0.0"
	b.latest = "1.1.0"
	b.manifestPath = "Cargo.toml"
	return b
}

// Clone creates a deep copy of the UpdateBuilder.
func (b *UpdateBuilder) Clone() testkit.Builder {
	return &UpdateBuilder{
		BaseBuilder:  b.BaseBuilder.Clone().(*testkit.BaseBuilder),
		ecosystem:    b.ecosystem,
		name:         b.name,
		current:      b.current,
		latest:       b.latest,
		manifestPath: b.manifestPath,
	}
}
