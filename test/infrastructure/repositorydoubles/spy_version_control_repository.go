//go:build integration || unit || test

// Package repositorydoubles provides test doubles (spies, stubs, dummies) for
// repository interfaces. These are hand-crafted implementations with no mock framework.
package repositorydoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"
	"fmt"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// SpyVersionControlRepository implements repositories.VersionControlRepository as a
// configurable spy. It keeps a minimal model of local and remote branches so tests can
// assert the state left behind by a run.
type SpyVersionControlRepository struct {
	// --- CurrentRemoteURL / CurrentBranch / IsClean ---
	RemoteURL    string
	RemoteURLErr error
	Branch       string
	BranchErr    error
	Clean        bool
	CleanErr     error

	// --- errors injected per operation ---
	CreateBranchErr error
	CheckoutErr     error
	DeleteBranchErr error
	StageErr        error
	CommitErr       error
	PushErr         error

	// OnPush runs after a successful push
	OnPush func()

	// --- state ---
	LocalBranches  map[string]bool
	RemoteBranches map[string]bool

	// spy: every mutating call in order, e.g. "create deps/x", "checkout main"
	Calls          []string
	CommitMessages []string
	Provider       string
	Token          string
}

var _ repositories.VersionControlRepository = (*SpyVersionControlRepository)(nil)

// NewSpyVersionControlRepository creates a clean spy checked out on the given branch.
func NewSpyVersionControlRepository(branch string) *SpyVersionControlRepository {
	return &SpyVersionControlRepository{
		RemoteURL:      "git@github.com:acme/widget.git",
		Branch:         branch,
		Clean:          true,
		LocalBranches:  map[string]bool{branch: true},
		RemoteBranches: map[string]bool{branch: true},
	}
}

func (s *SpyVersionControlRepository) CurrentRemoteURL() (string, error) {
	return s.RemoteURL, s.RemoteURLErr
}

func (s *SpyVersionControlRepository) CurrentBranch() (string, error) {
	return s.Branch, s.BranchErr
}

func (s *SpyVersionControlRepository) IsClean() (bool, error) {
	return s.Clean, s.CleanErr
}

func (s *SpyVersionControlRepository) SetCredentials(provider, token string) {
	s.Provider = provider
	s.Token = token
}

func (s *SpyVersionControlRepository) CreateBranch(name, base string) error {
	s.Calls = append(s.Calls, fmt.Sprintf("create %s from %s", name, base))
	if s.CreateBranchErr != nil {
		return s.CreateBranchErr
	}
	s.ensureMaps()
	s.LocalBranches[name] = true
	s.Branch = name
	return nil
}

func (s *SpyVersionControlRepository) Checkout(name string) error {
	s.Calls = append(s.Calls, "checkout "+name)
	if s.CheckoutErr != nil {
		return s.CheckoutErr
	}
	s.Branch = name
	return nil
}

func (s *SpyVersionControlRepository) DeleteBranch(
	_ context.Context,
	name string,
	scope repositories.BranchScope,
) error {
	s.Calls = append(s.Calls, fmt.Sprintf("delete %s %s", scope, name))
	if s.DeleteBranchErr != nil {
		return s.DeleteBranchErr
	}
	if scope == repositories.BranchScopeRemote {
		delete(s.RemoteBranches, name)
	} else {
		delete(s.LocalBranches, name)
	}
	return nil
}

func (s *SpyVersionControlRepository) StageAll() error {
	s.Calls = append(s.Calls, "stage")
	return s.StageErr
}

func (s *SpyVersionControlRepository) Commit(message string) (string, error) {
	s.Calls = append(s.Calls, "commit")
	if s.CommitErr != nil {
		return "", s.CommitErr
	}
	s.CommitMessages = append(s.CommitMessages, message)
	return "0123456789abcdef", nil
}

func (s *SpyVersionControlRepository) Push(_ context.Context, branch string) error {
	s.Calls = append(s.Calls, "push "+branch)
	if s.PushErr != nil {
		return s.PushErr
	}
	s.ensureMaps()
	s.RemoteBranches[branch] = true
	if s.OnPush != nil {
		s.OnPush()
	}
	return nil
}

// MutatingCalls returns the number of recorded state-changing calls.
func (s *SpyVersionControlRepository) MutatingCalls() int {
	return len(s.Calls)
}

func (s *SpyVersionControlRepository) ensureMaps() {
	if s.LocalBranches == nil {
		s.LocalBranches = make(map[string]bool)
	}
	if s.RemoteBranches == nil {
		s.RemoteBranches = make(map[string]bool)
	}
}

// SpyVersionControlOpener returns a repositories.VersionControlOpener that always yields vcs.
func SpyVersionControlOpener(vcs repositories.VersionControlRepository) repositories.VersionControlOpener {
	return func(_ string, _ *entities.Settings) (repositories.VersionControlRepository, error) {
		return vcs, nil
	}
}
