package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	infraRepos "github.com/rios0rios0/depflow/internal/infrastructure/repositories"
)

var (
	// ErrDirtyWorkingTree is returned when the checkout has uncommitted changes.
	ErrDirtyWorkingTree = errors.New("working tree has uncommitted changes")
	// ErrMissingToken is returned when no hosting token could be resolved.
	ErrMissingToken = errors.New("no auth token found")
	// ErrUnknownEcosystem is returned when a requested ecosystem is not registered.
	ErrUnknownEcosystem = errors.New("unknown ecosystem")
)

// Update is the interface for the update command.
type Update interface {
	Execute(ctx context.Context, opts UpdateOptions) (*entities.WorkflowRun, error)
}

// UpdateOptions holds the runtime options of one update run.
type UpdateOptions struct {
	RepoDir    string
	ConfigPath string
	Token      string
	Types      []entities.UpdateType
	Ecosystems []entities.Ecosystem
	Exclude    []string
	Primary    entities.Ecosystem
	DryRun     bool
	SkipTests  bool
	Verbose    bool
	Output     io.Writer
}

// UpdateCommand prepares a run against a local checkout (settings, remote, token, hosting
// adapter, default branch) and hands it to the Workflow.
type UpdateCommand struct {
	hostingRegistry   *infraRepos.HostingRegistry
	ecosystemRegistry *infraRepos.EcosystemRegistry
	openVCS           repositories.VersionControlOpener
}

// NewUpdateCommand creates a new UpdateCommand with the given registries.
func NewUpdateCommand(
	hostingRegistry *infraRepos.HostingRegistry,
	ecosystemRegistry *infraRepos.EcosystemRegistry,
	openVCS repositories.VersionControlOpener,
) *UpdateCommand {
	return &UpdateCommand{
		hostingRegistry:   hostingRegistry,
		ecosystemRegistry: ecosystemRegistry,
		openVCS:           openVCS,
	}
}

// Execute validates the startup conditions and runs the workflow. Startup failures return
// before any side effect; workflow failures return the finished run along with its error.
func (it *UpdateCommand) Execute(ctx context.Context, opts UpdateOptions) (*entities.WorkflowRun, error) {
	if opts.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}

	repoDir, err := filepath.Abs(opts.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	settings, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err = it.checkEcosystems(opts.Ecosystems); err != nil {
		return nil, err
	}

	vcs, err := it.openVCS(repoDir, settings)
	if err != nil {
		return nil, err
	}

	if !opts.DryRun {
		clean, statusErr := vcs.IsClean()
		if statusErr != nil {
			return nil, statusErr
		}
		if !clean {
			return nil, fmt.Errorf("%w; commit or stash them before running", ErrDirtyWorkingTree)
		}
	}

	rawURL, err := vcs.CurrentRemoteURL()
	if err != nil {
		return nil, fmt.Errorf("failed to detect git provider: %w", err)
	}
	remote, err := parseRemoteURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to detect git provider: %w", err)
	}
	logger.Infof("Detected provider: %s, org: %s, repo: %s", remote.ProviderType, remote.Org, remote.RepoName)

	token := resolveToken(opts.Token, settings, remote.ProviderType)
	if token == "" {
		return nil, fmt.Errorf(
			"%w for %s; set --token or the appropriate env var (%s)",
			ErrMissingToken, remote.ProviderType, tokenEnvHint(remote.ProviderType),
		)
	}
	vcs.SetCredentials(remote.ProviderType, token)

	hosting, err := it.hostingRegistry.Get(remote.ProviderType, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	repo, defaultBranch, err := resolveRepository(ctx, hosting, vcs, remote, settings)
	if err != nil {
		return nil, err
	}
	logger.Infof("Default branch: %s", defaultBranch)

	workspace := repositories.Workspace{
		RootDir:        repoDir,
		Lookup:         hosting,
		Settings:       settings,
		CommandTimeout: settings.CommandTimeout(),
	}
	workflow := NewWorkflow(
		vcs, hosting, it.enabledEcosystems(settings, remote.ProviderType), workspace, *repo, defaultBranch,
		settings.NetworkTimeout(),
	)

	primary := opts.Primary
	if primary == "" {
		primary = settings.PrimaryEcosystem
	}

	run := workflow.Run(ctx, WorkflowOptions{
		Policy:           entities.UpdatePolicy{AllowedTypes: opts.Types, ExcludedNames: opts.Exclude},
		Ecosystems:       opts.Ecosystems,
		PrimaryEcosystem: primary,
		BranchPrefix:     settings.BranchPrefix,
		DryRun:           opts.DryRun,
		SkipTests:        opts.SkipTests,
		Changelog:        settings.ChangelogEnabled(),
		Output:           opts.Output,
	})
	return run, run.Err
}

func (it *UpdateCommand) checkEcosystems(requested []entities.Ecosystem) error {
	for _, name := range requested {
		if it.ecosystemRegistry.Get(name) == nil {
			var known []string
			for _, registered := range it.ecosystemRegistry.Names() {
				known = append(known, string(registered))
			}
			return fmt.Errorf("%w %q (known: %s)", ErrUnknownEcosystem, name, strings.Join(known, ", "))
		}
	}
	return nil
}

// enabledEcosystems drops the ecosystems disabled in settings. Action references are
// resolved through the hosting API, so github-actions only runs against a GitHub remote.
func (it *UpdateCommand) enabledEcosystems(
	settings *entities.Settings,
	providerType string,
) []repositories.EcosystemRepository {
	var enabled []repositories.EcosystemRepository
	for _, ecosystem := range it.ecosystemRegistry.All() {
		if !settings.EcosystemEnabled(ecosystem.Name()) {
			logger.Infof("[%s] Disabled in settings", ecosystem.Name())
			continue
		}
		if ecosystem.Name() == entities.EcosystemGitHubActions && providerType != providerGitHub {
			logger.Infof("[%s] Skipped, action lookups need a GitHub remote (found %s)",
				ecosystem.Name(), providerType)
			continue
		}
		enabled = append(enabled, ecosystem)
	}
	return enabled
}

// loadSettings reads an explicit config path (fatal on error), or the first auto-detected
// config file, or falls back to the defaults.
func loadSettings(configPath string) (*entities.Settings, error) {
	if configPath != "" {
		return entities.NewSettings(configPath)
	}

	found, err := entities.FindConfigFile()
	if err != nil {
		logger.Debug("No config file found, using defaults")
		return entities.NewDefaultSettings(), nil
	}
	logger.Infof("Using config file %s", found)
	return entities.NewSettings(found)
}

// resolveToken picks the flag value, then the settings token, then the provider env vars.
func resolveToken(flagToken string, settings *entities.Settings, providerType string) string {
	if flagToken != "" {
		return flagToken
	}
	if settings.Token != "" {
		return settings.Token
	}
	return resolveTokenFromEnv(providerType)
}

// resolveRepository asks the hosting API for the repository. The settings default_branch
// wins over the API answer; when the lookup fails the current branch is used instead.
func resolveRepository(
	ctx context.Context,
	hosting repositories.HostingRepository,
	vcs repositories.VersionControlRepository,
	remote *entities.RemoteInfo,
	settings *entities.Settings,
) (*entities.Repository, string, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, settings.NetworkTimeout())
	defer cancel()

	repo, err := hosting.GetRepository(lookupCtx, remote.FullName())
	if err != nil {
		logger.Warnf("Failed to fetch repository metadata, falling back to local state: %v", err)
		repo = &entities.Repository{
			ID:           remote.RepoName,
			Name:         remote.RepoName,
			Organization: remote.Org,
			ProviderName: remote.ProviderType,
		}
	}

	defaultBranch := strings.TrimPrefix(repo.DefaultBranch, "refs/heads/")
	if settings.DefaultBranch != "" {
		defaultBranch = settings.DefaultBranch
	}
	if defaultBranch == "" {
		current, branchErr := vcs.CurrentBranch()
		if branchErr != nil {
			return nil, "", fmt.Errorf("failed to detect current branch: %w", branchErr)
		}
		defaultBranch = current
	}

	repo.DefaultBranch = "refs/heads/" + defaultBranch
	return repo, defaultBranch, nil
}
