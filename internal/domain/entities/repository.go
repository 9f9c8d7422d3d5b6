package entities

import (
	gitforgeEntities "github.com/rios0rios0/gitforge/pkg/global/domain/entities"
)

// Repository is re-exported from gitforge.
type Repository = gitforgeEntities.Repository

// PullRequestInput is re-exported from gitforge.
type PullRequestInput = gitforgeEntities.PullRequestInput

// PullRequest is re-exported from gitforge.
type PullRequest = gitforgeEntities.PullRequest

// RemoteInfo holds the parsed components of a Git remote URL.
type RemoteInfo struct {
	ProviderType string
	Org          string
	RepoName     string
}

// FullName returns the "org/repo" identifier used by hosting APIs.
func (r RemoteInfo) FullName() string {
	return r.Org + "/" + r.RepoName
}
