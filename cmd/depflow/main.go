package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/depflow/internal"
	"github.com/rios0rios0/depflow/internal/infrastructure/controllers"
)

func buildRootCommand(updateController *controllers.UpdateController) *cobra.Command {
	//nolint:exhaustruct // Minimal Command initialization with required fields only
	cmd := &cobra.Command{
		Use:   "depflow [path]",
		Short: "Automated dependency updates for a local repository",
		Long: `Keeps a repository's dependencies current across Rust, Python, Go,
GitHub Actions and Terraform. Outdated dependencies allowed by the update policy are
applied on a fresh branch, validated by the test suites, pushed, and proposed as a single
pull request on GitHub or GitLab.

Usage modes:
  depflow .                      Update the current repository
  depflow /path/to/repo          Update a specific repository
  depflow update --dry-run .     Only report what would change`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) == 0 {
				return command.Help()
			}
			return updateController.Execute(command, args)
		},
	}

	updateController.AddFlags(cmd)
	return cmd
}

func addSubcommands(rootCmd *cobra.Command, appContext *internal.AppInternal) {
	for _, controller := range appContext.GetControllers() {
		bind := controller.GetBind()
		ctrl := controller
		//nolint:exhaustruct // Minimal Command initialization with required fields only
		subCmd := &cobra.Command{
			Use:           bind.Use,
			Short:         bind.Short,
			Long:          bind.Long,
			Args:          cobra.MaximumNArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(command *cobra.Command, arguments []string) error {
				return ctrl.Execute(command, arguments)
			},
		}
		ctrl.AddFlags(subCmd)

		rootCmd.AddCommand(subCmd)
	}
}

func main() {
	//nolint:exhaustruct // Minimal TextFormatter initialization with required fields only
	logger.SetFormatter(&logger.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	appContext := injectAppContext()
	cobraRoot := buildRootCommand(appContext.GetUpdateController())
	addSubcommands(cobraRoot, appContext)

	err := cobraRoot.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Fatalf("Error executing 'depflow': %s", err)
	}
}
