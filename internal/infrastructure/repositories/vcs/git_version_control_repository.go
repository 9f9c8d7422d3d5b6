// Package vcs implements the version-control port on top of go-git.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

const providerGitLab = "gitlab"

var errDetachedHead = errors.New("HEAD is not on a branch")

// GitVersionControlRepository implements repositories.VersionControlRepository for a local
// checkout opened with go-git.
type GitVersionControlRepository struct {
	repo   *git.Repository
	remote string
	author entities.AuthorSettings
	auth   transport.AuthMethod
}

// OpenGitVersionControlRepository opens the repository containing dir, searching parent
// directories for the .git folder.
func OpenGitVersionControlRepository(
	dir string,
	settings *entities.Settings,
) (repositories.VersionControlRepository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %q: %w", dir, err)
	}

	if settings == nil {
		settings = entities.NewDefaultSettings()
	}
	return &GitVersionControlRepository{
		repo:   repo,
		remote: settings.Remote,
		author: settings.Author,
	}, nil
}

// SetCredentials configures token authentication for HTTPS remotes. SSH remotes keep using
// the ambient agent configuration.
func (it *GitVersionControlRepository) SetCredentials(provider, token string) {
	if token == "" {
		it.auth = nil
		return
	}

	username := "x-access-token"
	if provider == providerGitLab {
		username = "oauth2"
	}
	it.auth = &http.BasicAuth{Username: username, Password: token}
}

func (it *GitVersionControlRepository) CurrentRemoteURL() (string, error) {
	remote, err := it.repo.Remote(it.remote)
	if err != nil {
		return "", fmt.Errorf("failed to read remote %q: %w", it.remote, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %q has no URL", it.remote)
	}
	return urls[0], nil
}

func (it *GitVersionControlRepository) CurrentBranch() (string, error) {
	head, err := it.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", errDetachedHead
	}
	return head.Name().Short(), nil
}

func (it *GitVersionControlRepository) IsClean() (bool, error) {
	worktree, err := it.repo.Worktree()
	if err != nil {
		return false, err
	}

	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read working tree status: %w", err)
	}
	return status.IsClean(), nil
}

func (it *GitVersionControlRepository) CreateBranch(name, base string) error {
	worktree, err := it.repo.Worktree()
	if err != nil {
		return err
	}

	baseRef, err := it.repo.Reference(plumbing.NewBranchReferenceName(base), true)
	if err != nil {
		return fmt.Errorf("failed to resolve base branch %q: %w", base, err)
	}

	if err = worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Hash:   baseRef.Hash(),
		Create: true,
	}); err != nil {
		return fmt.Errorf("failed to create branch %q: %w", name, err)
	}
	return nil
}

func (it *GitVersionControlRepository) Checkout(name string) error {
	worktree, err := it.repo.Worktree()
	if err != nil {
		return err
	}

	if err = worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Force:  true,
	}); err != nil {
		return fmt.Errorf("failed to check out %q: %w", name, err)
	}

	if err = removeUntracked(worktree); err != nil {
		return fmt.Errorf("failed to remove untracked files: %w", err)
	}
	return nil
}

// removeUntracked deletes the files Status reports as untracked. Ignored paths never show up
// in Status, so they are left alone. Directories emptied by the removal are pruned.
func removeUntracked(worktree *git.Worktree) error {
	status, err := worktree.Status()
	if err != nil {
		return err
	}

	for file, fileStatus := range status {
		if fileStatus.Worktree != git.Untracked {
			continue
		}
		if err = worktree.Filesystem.Remove(file); err != nil {
			return err
		}
		pruneEmptyParents(worktree.Filesystem, file)
	}
	return nil
}

func pruneEmptyParents(fs billy.Filesystem, file string) {
	for dir := path.Dir(file); dir != "." && dir != "/"; dir = path.Dir(dir) {
		entries, err := fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err = fs.Remove(dir); err != nil {
			return
		}
	}
}

func (it *GitVersionControlRepository) DeleteBranch(
	ctx context.Context,
	name string,
	scope repositories.BranchScope,
) error {
	if scope == repositories.BranchScopeRemote {
		err := it.repo.PushContext(ctx, &git.PushOptions{
			RemoteName: it.remote,
			RefSpecs:   []config.RefSpec{config.RefSpec(":" + plumbing.NewBranchReferenceName(name).String())},
			Auth:       it.auth,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to delete remote branch %q: %w", name, err)
		}
		return nil
	}

	if err := it.repo.DeleteBranch(name); err != nil && !errors.Is(err, git.ErrBranchNotFound) {
		logger.Debugf("Failed to remove tracking configuration of %q: %v", name, err)
	}
	if err := it.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return fmt.Errorf("failed to delete branch %q: %w", name, err)
	}
	return nil
}

func (it *GitVersionControlRepository) StageAll() error {
	worktree, err := it.repo.Worktree()
	if err != nil {
		return err
	}
	if err = worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

func (it *GitVersionControlRepository) Commit(message string) (string, error) {
	worktree, err := it.repo.Worktree()
	if err != nil {
		return "", err
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  it.author.Name,
			Email: it.author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}

func (it *GitVersionControlRepository) Push(ctx context.Context, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := it.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: it.remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
		Auth:       it.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %q: %w", branch, err)
	}

	trackErr := it.repo.CreateBranch(&config.Branch{Name: branch, Remote: it.remote, Merge: ref})
	if trackErr != nil && !errors.Is(trackErr, git.ErrBranchExists) {
		logger.Warnf("Failed to set upstream of %q: %v", branch, trackErr)
	}
	return nil
}
