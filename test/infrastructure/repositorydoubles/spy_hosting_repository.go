//go:build integration || unit || test

package repositorydoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// SpyHostingRepository implements repositories.HostingRepository as a configurable spy.
type SpyHostingRepository struct {
	// --- identity ---
	ProviderName string
	Token        string

	// --- GetRepository ---
	Repository       *entities.Repository
	GetRepositoryErr error
	// spy: identifiers requested
	RequestedRepositories []string

	// --- GetReleases / GetTags ---
	Releases       map[string][]string
	ReleasesErr    error
	Tags           map[string][]string
	TagsErr        error
	ReleaseLookups []string
	TagLookups     []string

	// --- CreatePullRequest ---
	CreatedPR   *entities.PullRequest
	CreatePRErr error
	// spy: inputs received
	PRInputs []entities.PullRequestInput
}

var _ repositories.HostingRepository = (*SpyHostingRepository)(nil)

func (s *SpyHostingRepository) Name() string      { return s.ProviderName }
func (s *SpyHostingRepository) AuthToken() string { return s.Token }

func (s *SpyHostingRepository) GetRepository(
	_ context.Context,
	identifier string,
) (*entities.Repository, error) {
	s.RequestedRepositories = append(s.RequestedRepositories, identifier)
	if s.GetRepositoryErr != nil {
		return nil, s.GetRepositoryErr
	}
	if s.Repository != nil {
		repo := *s.Repository
		return &repo, nil
	}
	return &entities.Repository{
		ID:            "1",
		Name:          "widget",
		Organization:  "acme",
		DefaultBranch: "refs/heads/main",
		ProviderName:  s.ProviderName,
	}, nil
}

func (s *SpyHostingRepository) GetReleases(_ context.Context, identifier string) ([]string, error) {
	s.ReleaseLookups = append(s.ReleaseLookups, identifier)
	return s.Releases[identifier], s.ReleasesErr
}

func (s *SpyHostingRepository) GetTags(_ context.Context, identifier string) ([]string, error) {
	s.TagLookups = append(s.TagLookups, identifier)
	return s.Tags[identifier], s.TagsErr
}

func (s *SpyHostingRepository) CreatePullRequest(
	_ context.Context,
	_ entities.Repository,
	input entities.PullRequestInput,
) (*entities.PullRequest, error) {
	s.PRInputs = append(s.PRInputs, input)
	if s.CreatePRErr != nil {
		return nil, s.CreatePRErr
	}
	if s.CreatedPR != nil {
		return s.CreatedPR, nil
	}
	return &entities.PullRequest{
		ID:    1,
		Title: input.Title,
		URL:   "https://example.com/pr/1",
	}, nil
}
