package repositories

import (
	"context"

	"github.com/rios0rios0/depflow/internal/domain/entities"
)

// ReferenceLookup resolves the published references of a remote project identified by
// "owner/name". Both lists are ordered newest first.
type ReferenceLookup interface {
	GetReleases(ctx context.Context, identifier string) ([]string, error)
	GetTags(ctx context.Context, identifier string) ([]string, error)
}

// HostingRepository abstracts a Git hosting service (GitHub, GitLab) for the operations the
// update workflow needs.
type HostingRepository interface {
	ReferenceLookup

	// Name returns the provider identifier (e.g. "github").
	Name() string

	// AuthToken returns the token the provider was created with, for pushing over HTTPS.
	AuthToken() string

	// GetRepository returns the repository metadata, including its default branch.
	GetRepository(ctx context.Context, identifier string) (*entities.Repository, error)

	// CreatePullRequest opens a proposed change and returns it with its URL.
	CreatePullRequest(
		ctx context.Context,
		repo entities.Repository,
		input entities.PullRequestInput,
	) (*entities.PullRequest, error)
}
