package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/hosting"
)

const (
	providerName = "github"
	perPage      = 100
)

// GitHubHostingRepository implements repositories.HostingRepository for GitHub.
type GitHubHostingRepository struct {
	token  string
	client *gh.Client
}

// NewGitHubHostingRepository creates a GitHub adapter authenticated with the given token.
func NewGitHubHostingRepository(token string) repositories.HostingRepository {
	return &GitHubHostingRepository{
		token:  token,
		client: gh.NewClient(nil).WithAuthToken(token),
	}
}

// NewGitHubHostingRepositoryWithBaseURL points the adapter at another API root, such as a
// GitHub Enterprise server.
func NewGitHubHostingRepositoryWithBaseURL(token, baseURL string) (repositories.HostingRepository, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
	}

	client := gh.NewClient(nil).WithAuthToken(token)
	client.BaseURL = parsed
	return &GitHubHostingRepository{token: token, client: client}, nil
}

func (it *GitHubHostingRepository) Name() string      { return providerName }
func (it *GitHubHostingRepository) AuthToken() string { return it.token }

// GetRepository fetches the repository metadata, including its default branch.
func (it *GitHubHostingRepository) GetRepository(
	ctx context.Context,
	identifier string,
) (*entities.Repository, error) {
	owner, name, ok := hosting.SplitIdentifier(identifier)
	if !ok {
		return nil, fmt.Errorf("invalid GitHub repository %q", identifier)
	}

	var repo *gh.Repository
	err := hosting.Retry(ctx, "GitHub repository lookup", func() error {
		var getErr error
		repo, _, getErr = it.client.Repositories.Get(ctx, owner, name)
		return getErr
	}, isTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %q: %w", identifier, err)
	}

	return &entities.Repository{
		ID:            strconv.FormatInt(repo.GetID(), 10),
		Name:          repo.GetName(),
		Organization:  owner,
		DefaultBranch: "refs/heads/" + repo.GetDefaultBranch(),
		RemoteURL:     repo.GetCloneURL(),
		SSHURL:        repo.GetSSHURL(),
		ProviderName:  providerName,
	}, nil
}

// GetReleases returns the published release tags, newest first. Drafts are skipped.
func (it *GitHubHostingRepository) GetReleases(ctx context.Context, identifier string) ([]string, error) {
	owner, name, ok := hosting.SplitIdentifier(identifier)
	if !ok {
		return nil, fmt.Errorf("invalid GitHub repository %q", identifier)
	}

	var releases []*gh.RepositoryRelease
	err := hosting.Retry(ctx, "GitHub releases lookup", func() error {
		var listErr error
		releases, _, listErr = it.client.Repositories.ListReleases(
			ctx, owner, name, &gh.ListOptions{PerPage: perPage},
		)
		return listErr
	}, isTransient)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	tags := make([]string, 0, len(releases))
	for _, release := range releases {
		if release.GetDraft() || release.GetTagName() == "" {
			continue
		}
		tags = append(tags, release.GetTagName())
	}
	return tags, nil
}

// GetTags returns every tag of the repository sorted newest first.
func (it *GitHubHostingRepository) GetTags(ctx context.Context, identifier string) ([]string, error) {
	owner, name, ok := hosting.SplitIdentifier(identifier)
	if !ok {
		return nil, fmt.Errorf("invalid GitHub repository %q", identifier)
	}

	var allTags []string
	opts := &gh.ListOptions{PerPage: perPage}

	for {
		var (
			tags []*gh.RepositoryTag
			resp *gh.Response
		)
		err := hosting.Retry(ctx, "GitHub tags lookup", func() error {
			var listErr error
			tags, resp, listErr = it.client.Repositories.ListTags(ctx, owner, name, opts)
			return listErr
		}, isTransient)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags: %w", err)
		}

		for _, tag := range tags {
			allTags = append(allTags, tag.GetName())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	hosting.SortVersionsDescending(allTags)
	return allTags, nil
}

// CreatePullRequest opens a pull request from the pushed source branch.
func (it *GitHubHostingRepository) CreatePullRequest(
	ctx context.Context,
	repo entities.Repository,
	input entities.PullRequestInput,
) (*entities.PullRequest, error) {
	sourceBranch := strings.TrimPrefix(input.SourceBranch, "refs/heads/")
	targetBranch := strings.TrimPrefix(input.TargetBranch, "refs/heads/")

	maintainerCanModify := true
	pr, _, err := it.client.PullRequests.Create(
		ctx, repo.Organization, repo.Name,
		&gh.NewPullRequest{
			Title:               &input.Title,
			Head:                &sourceBranch,
			Base:                &targetBranch,
			Body:                &input.Description,
			MaintainerCanModify: &maintainerCanModify,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}

	return &entities.PullRequest{
		ID:     pr.GetNumber(),
		Title:  pr.GetTitle(),
		URL:    pr.GetHTMLURL(),
		Status: pr.GetState(),
	}, nil
}

// isTransient retries server errors and transport failures. Client errors, including rate
// limiting, are returned immediately.
func isTransient(err error) bool {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return false
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
