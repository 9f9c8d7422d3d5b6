package repositories

import (
	"context"

	"github.com/rios0rios0/depflow/internal/domain/entities"
)

// BranchScope selects where DeleteBranch removes a branch.
type BranchScope int

const (
	BranchScopeLocal BranchScope = iota
	BranchScopeRemote
)

func (s BranchScope) String() string {
	if s == BranchScopeRemote {
		return "remote"
	}
	return "local"
}

// VersionControlRepository abstracts the local version-control tool. Only the workflow
// orchestrator calls the mutating methods.
type VersionControlRepository interface {
	// CurrentRemoteURL returns the fetch URL of the configured remote.
	CurrentRemoteURL() (string, error)

	// CurrentBranch returns the short name of the checked-out branch.
	CurrentBranch() (string, error)

	// IsClean reports whether the working tree has no staged, unstaged or untracked changes.
	IsClean() (bool, error)

	// CreateBranch creates the branch from the tip of base and checks it out.
	CreateBranch(name, base string) error

	// Checkout switches to an existing branch, discarding working-tree edits and removing
	// untracked files.
	Checkout(name string) error

	// DeleteBranch removes the branch locally or on the remote.
	DeleteBranch(ctx context.Context, name string, scope BranchScope) error

	// StageAll stages every working-tree change.
	StageAll() error

	// Commit records the staged changes and returns the commit hash.
	Commit(message string) (string, error)

	// Push publishes the branch and sets its upstream tracking configuration.
	Push(ctx context.Context, branch string) error

	// SetCredentials configures the HTTPS credentials used by remote operations.
	SetCredentials(provider, token string)
}

// VersionControlOpener opens the version-control repository containing dir.
type VersionControlOpener func(dir string, settings *entities.Settings) (VersionControlRepository, error)
