package repositories

import (
	"go.uber.org/dig"

	domainRepos "github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/command"
	ghRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/github"
	ghaRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/githubactions"
	glRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/gitlab"
	goRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/golang"
	pyRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/python"
	rsRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/rust"
	tfRepo "github.com/rios0rios0/depflow/internal/infrastructure/repositories/terraform"
	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/vcs"
)

// RegisterProviders registers all repository providers with the DIG container.
func RegisterProviders(container *dig.Container) error {
	if err := container.Provide(command.NewExecCommandRunner); err != nil {
		return err
	}

	// Register hosting registry with all hosting factories
	if err := container.Provide(func() *HostingRegistry {
		reg := NewHostingRegistry()
		reg.Register("github", ghRepo.NewGitHubHostingRepository)
		reg.Register("gitlab", glRepo.NewGitLabHostingRepository)
		return reg
	}); err != nil {
		return err
	}

	// Registration order is the order discovered updates are merged in
	if err := container.Provide(func(runner domainRepos.CommandRunner) *EcosystemRegistry {
		return NewEcosystemRegistry(
			rsRepo.NewRustEcosystemRepository(runner),
			pyRepo.NewPythonEcosystemRepository(runner),
			goRepo.NewGolangEcosystemRepository(runner),
			ghaRepo.NewGitHubActionsEcosystemRepository(),
			tfRepo.NewTerraformEcosystemRepository(),
		)
	}); err != nil {
		return err
	}

	if err := container.Provide(func() domainRepos.VersionControlOpener {
		return vcs.OpenGitVersionControlRepository
	}); err != nil {
		return err
	}

	return nil
}
