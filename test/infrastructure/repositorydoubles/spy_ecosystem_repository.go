//go:build integration || unit || test

package repositorydoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"
	"sync"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// SpyEcosystemRepository implements repositories.EcosystemRepository as a configurable spy.
type SpyEcosystemRepository struct {
	// --- identity ---
	EcosystemName entities.Ecosystem

	// --- Detect ---
	DetectResult bool

	// --- Discover ---
	Updates       []entities.Update
	DiscoverPanic any

	// --- Apply ---
	ApplyErr    error
	ApplyErrFor map[string]error // dependency name -> error
	ApplyFn     func(ws repositories.Workspace, update entities.Update) error

	// --- RunTests ---
	TestsErr error

	mu sync.Mutex
	// spy: calls received
	DiscoverCalls  int
	AppliedUpdates []entities.Update
	TestRuns       int
}

var _ repositories.EcosystemRepository = (*SpyEcosystemRepository)(nil)

func (s *SpyEcosystemRepository) Name() entities.Ecosystem { return s.EcosystemName }

func (s *SpyEcosystemRepository) Detect(_ repositories.Workspace) bool { return s.DetectResult }

func (s *SpyEcosystemRepository) Discover(_ context.Context, _ repositories.Workspace) []entities.Update {
	s.mu.Lock()
	s.DiscoverCalls++
	s.mu.Unlock()

	if s.DiscoverPanic != nil {
		panic(s.DiscoverPanic)
	}
	return s.Updates
}

func (s *SpyEcosystemRepository) Apply(
	_ context.Context,
	ws repositories.Workspace,
	update entities.Update,
) error {
	s.mu.Lock()
	s.AppliedUpdates = append(s.AppliedUpdates, update)
	s.mu.Unlock()

	if err, ok := s.ApplyErrFor[update.Name]; ok {
		return err
	}
	if s.ApplyFn != nil {
		if err := s.ApplyFn(ws, update); err != nil {
			return err
		}
	}
	return s.ApplyErr
}

func (s *SpyEcosystemRepository) RunTests(_ context.Context, _ repositories.Workspace) error {
	s.mu.Lock()
	s.TestRuns++
	s.mu.Unlock()
	return s.TestsErr
}
