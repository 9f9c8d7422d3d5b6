package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/hosting"
)

const (
	providerName = "gitlab"
	perPage      = 100
)

var errClientNotInitialized = errors.New("gitlab client not initialized")

// GitLabHostingRepository implements repositories.HostingRepository for GitLab.
type GitLabHostingRepository struct {
	token  string
	client *gl.Client
}

// NewGitLabHostingRepository creates a GitLab adapter authenticated with the given token.
func NewGitLabHostingRepository(token string) repositories.HostingRepository {
	client, err := gl.NewClient(token)
	if err != nil {
		// fail on use rather than at construction
		return &GitLabHostingRepository{token: token}
	}
	return &GitLabHostingRepository{token: token, client: client}
}

// NewGitLabHostingRepositoryWithBaseURL points the adapter at a self-managed GitLab instance.
func NewGitLabHostingRepositoryWithBaseURL(token, baseURL string) (repositories.HostingRepository, error) {
	client, err := gl.NewClient(token, gl.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid GitLab API URL %q: %w", baseURL, err)
	}
	return &GitLabHostingRepository{token: token, client: client}, nil
}

func (it *GitLabHostingRepository) Name() string      { return providerName }
func (it *GitLabHostingRepository) AuthToken() string { return it.token }

// GetRepository fetches the project metadata, including its default branch.
func (it *GitLabHostingRepository) GetRepository(
	ctx context.Context,
	identifier string,
) (*entities.Repository, error) {
	if it.client == nil {
		return nil, errClientNotInitialized
	}

	var project *gl.Project
	err := hosting.Retry(ctx, "GitLab project lookup", func() error {
		var getErr error
		project, _, getErr = it.client.Projects.GetProject(
			identifier, &gl.GetProjectOptions{}, gl.WithContext(ctx),
		)
		return getErr
	}, isTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %q: %w", identifier, err)
	}

	organization := identifier[:strings.LastIndex(identifier, "/")+1]
	return &entities.Repository{
		ID:            fmt.Sprint(project.ID),
		Name:          project.Path,
		Organization:  strings.TrimSuffix(organization, "/"),
		DefaultBranch: "refs/heads/" + project.DefaultBranch,
		RemoteURL:     project.HTTPURLToRepo,
		SSHURL:        project.SSHURLToRepo,
		ProviderName:  providerName,
	}, nil
}

// GetReleases returns the release tags of the project, newest first.
func (it *GitLabHostingRepository) GetReleases(ctx context.Context, identifier string) ([]string, error) {
	if it.client == nil {
		return nil, errClientNotInitialized
	}

	var releases []*gl.Release
	err := hosting.Retry(ctx, "GitLab releases lookup", func() error {
		var listErr error
		releases, _, listErr = it.client.Releases.ListReleases(
			identifier,
			&gl.ListReleasesOptions{ListOptions: gl.ListOptions{PerPage: perPage}},
			gl.WithContext(ctx),
		)
		return listErr
	}, isTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	tags := make([]string, 0, len(releases))
	for _, release := range releases {
		if release.TagName != "" {
			tags = append(tags, release.TagName)
		}
	}
	return tags, nil
}

// GetTags returns every tag of the project sorted newest first.
func (it *GitLabHostingRepository) GetTags(ctx context.Context, identifier string) ([]string, error) {
	if it.client == nil {
		return nil, errClientNotInitialized
	}

	var allTags []string
	opts := &gl.ListTagsOptions{
		ListOptions: gl.ListOptions{PerPage: perPage},
	}

	for {
		var (
			tags []*gl.Tag
			resp *gl.Response
		)
		err := hosting.Retry(ctx, "GitLab tags lookup", func() error {
			var listErr error
			tags, resp, listErr = it.client.Tags.ListTags(identifier, opts, gl.WithContext(ctx))
			return listErr
		}, isTransient)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags: %w", err)
		}

		for _, tag := range tags {
			allTags = append(allTags, tag.Name)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	hosting.SortVersionsDescending(allTags)
	return allTags, nil
}

// CreatePullRequest opens a merge request that removes the source branch once merged.
func (it *GitLabHostingRepository) CreatePullRequest(
	ctx context.Context,
	repo entities.Repository,
	input entities.PullRequestInput,
) (*entities.PullRequest, error) {
	if it.client == nil {
		return nil, errClientNotInitialized
	}

	pid := repo.Organization + "/" + repo.Name
	sourceBranch := strings.TrimPrefix(input.SourceBranch, "refs/heads/")
	targetBranch := strings.TrimPrefix(input.TargetBranch, "refs/heads/")

	mr, _, err := it.client.MergeRequests.CreateMergeRequest(
		pid,
		&gl.CreateMergeRequestOptions{
			Title:              gl.Ptr(input.Title),
			Description:        gl.Ptr(input.Description),
			SourceBranch:       gl.Ptr(sourceBranch),
			TargetBranch:       gl.Ptr(targetBranch),
			RemoveSourceBranch: gl.Ptr(true),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge request: %w", err)
	}

	return &entities.PullRequest{
		ID:     int(mr.IID),
		Title:  mr.Title,
		URL:    mr.WebURL,
		Status: mr.State,
	}, nil
}

func isTransient(err error) bool {
	var respErr *gl.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
