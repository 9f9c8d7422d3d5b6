package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rios0rios0/depflow/internal/domain/entities"
)

// Workspace is the local checkout an ecosystem operates on, plus the collaborators it may
// need while discovering.
type Workspace struct {
	RootDir        string
	Lookup         ReferenceLookup
	Settings       *entities.Settings
	CommandTimeout time.Duration
}

// Path resolves a repository-relative path against the workspace root.
func (w Workspace) Path(relative string) string {
	return filepath.Join(w.RootDir, filepath.FromSlash(relative))
}

// Manifest returns the manifest path configured for the ecosystem, or fallback.
func (w Workspace) Manifest(ecosystem entities.Ecosystem, fallback string) string {
	if w.Settings == nil {
		return fallback
	}
	return w.Settings.ManifestFor(ecosystem, fallback)
}

// WithCommandTimeout bounds ctx by the workspace command timeout, when one is set.
func (w Workspace) WithCommandTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.CommandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.CommandTimeout)
}

// EcosystemRepository is the discover/apply capability pair of one package ecosystem.
// New ecosystems register an implementation without touching the orchestrator.
type EcosystemRepository interface {
	// Name returns the ecosystem identifier.
	Name() entities.Ecosystem

	// Detect reports whether the workspace contains this ecosystem's manifest.
	Detect(ws Workspace) bool

	// Discover returns one update per outdated dependency. Every failure (missing manifest,
	// failing probe, unparsable output) is logged and yields an empty result.
	Discover(ctx context.Context, ws Workspace) []entities.Update

	// Apply substitutes the update's version in its manifest and regenerates any lock
	// artifact. It never touches version-control state.
	Apply(ctx context.Context, ws Workspace, update entities.Update) error

	// RunTests runs the ecosystem's test suite. Ecosystems without one return nil.
	RunTests(ctx context.Context, ws Workspace) error
}

// ErrPatternNotFound is returned by Apply when the manifest no longer contains the reported
// current version of the dependency.
var ErrPatternNotFound = errors.New("version pattern not found in manifest")
