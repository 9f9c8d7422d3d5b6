package controllers

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	infraRepos "github.com/rios0rios0/depflow/internal/infrastructure/repositories"
)

// EcosystemsController handles the "ecosystems" subcommand, which lists the registered
// ecosystems and whether each one is present in a repository.
type EcosystemsController struct {
	registry *infraRepos.EcosystemRegistry
}

// NewEcosystemsController creates a new EcosystemsController.
func NewEcosystemsController(registry *infraRepos.EcosystemRegistry) *EcosystemsController {
	return &EcosystemsController{registry: registry}
}

// GetBind returns the Cobra command metadata for the ecosystems controller.
func (it *EcosystemsController) GetBind() entities.ControllerBind {
	return entities.ControllerBind{
		Use:   "ecosystems [path]",
		Short: "List the supported ecosystems",
		Long: `List the supported ecosystems in the order their updates are merged,
marking the ones detected in the given repository (default: current directory).`,
	}
}

// AddFlags adds the ecosystems flags to the given Cobra command.
func (it *EcosystemsController) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Path to config file (default: auto-detect)")
}

// Execute prints one line per registered ecosystem.
func (it *EcosystemsController) Execute(cmd *cobra.Command, args []string) error {
	repoDir := "."
	if len(args) > 0 {
		repoDir = args[0]
	}
	root, err := filepath.Abs(repoDir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	settings := entities.NewDefaultSettings()
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		if settings, err = entities.NewSettings(configPath); err != nil {
			return err
		}
	}

	workspace := repositories.Workspace{RootDir: root, Settings: settings}
	for _, ecosystem := range it.registry.All() {
		status := "not detected"
		if ecosystem.Detect(workspace) {
			status = "detected"
		}
		if !settings.EcosystemEnabled(ecosystem.Name()) {
			status += ", disabled"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-16s %s\n",
			ecosystem.Name(), ecosystem.Name().DisplayName(), status)
	}
	return nil
}
