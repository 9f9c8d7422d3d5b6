package controllers

import (
	"errors"
	"fmt"
	"io"
	"strings"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/depflow/internal/domain/commands"
	"github.com/rios0rios0/depflow/internal/domain/entities"
)

// ErrInvalidUpdateType is returned when --types names an unknown update type.
var ErrInvalidUpdateType = errors.New("invalid update type")

// UpdateController handles the "update" subcommand and the root command with a path argument.
type UpdateController struct {
	command commands.Update
}

// NewUpdateController creates a new UpdateController.
func NewUpdateController(command commands.Update) *UpdateController {
	return &UpdateController{command: command}
}

// GetBind returns the Cobra command metadata for the update controller.
func (it *UpdateController) GetBind() entities.ControllerBind {
	return entities.ControllerBind{
		Use:   "update [path]",
		Short: "Update outdated dependencies in a local repository",
		Long: `Discover outdated dependencies across every supported ecosystem (Rust, Python,
Go, GitHub Actions and Terraform), apply the ones allowed by the update policy on a fresh
branch, run the test suites, push the branch and open a pull request.

Any failure between branch creation and push rolls the repository back to the default
branch and deletes the working branch.`,
	}
}

// AddFlags adds the update flags to the given Cobra command.
func (it *UpdateController) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("types", []string{"minor", "patch"},
		"Update types to apply (major, minor, patch)")
	cmd.Flags().StringSlice("ecosystems", nil,
		"Only process these ecosystems (default: all)")
	cmd.Flags().StringSlice("exclude", nil,
		"Dependency names to never update")
	cmd.Flags().String("primary", "",
		"Ecosystem whose test failure blocks the run (default: from settings)")
	cmd.Flags().Bool("dry-run", false,
		"Show what would be done without making changes")
	cmd.Flags().Bool("skip-tests", false,
		"Skip running the test suites")
	cmd.Flags().BoolP("verbose", "v", false,
		"Enable verbose output")
	cmd.Flags().StringP("config", "c", "",
		"Path to config file (default: auto-detect)")
	cmd.Flags().String("token", "",
		"Auth token for the Git provider (overrides env var detection)")
}

// Execute runs one update cycle. The returned error makes the process exit non-zero.
func (it *UpdateController) Execute(cmd *cobra.Command, args []string) error {
	opts, err := parseUpdateOptions(cmd, args)
	if err != nil {
		return err
	}

	run, err := it.command.Execute(cmd.Context(), opts)
	if run != nil {
		printSummary(opts.Output, run)
	}
	if err != nil {
		logger.Errorf("Update failed: %v", err)
		return err
	}
	return nil
}

func parseUpdateOptions(cmd *cobra.Command, args []string) (commands.UpdateOptions, error) {
	rawTypes, _ := cmd.Flags().GetStringSlice("types")
	rawEcosystems, _ := cmd.Flags().GetStringSlice("ecosystems")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	primary, _ := cmd.Flags().GetString("primary")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipTests, _ := cmd.Flags().GetBool("skip-tests")
	verbose, _ := cmd.Flags().GetBool("verbose")
	configPath, _ := cmd.Flags().GetString("config")
	token, _ := cmd.Flags().GetString("token")

	types := make([]entities.UpdateType, 0, len(rawTypes))
	for _, raw := range rawTypes {
		updateType, ok := entities.ParseUpdateType(raw)
		if !ok {
			return commands.UpdateOptions{}, fmt.Errorf(
				"%w %q (expected major, minor, patch or unknown)", ErrInvalidUpdateType, raw,
			)
		}
		types = append(types, updateType)
	}

	ecosystems := make([]entities.Ecosystem, 0, len(rawEcosystems))
	for _, raw := range rawEcosystems {
		ecosystems = append(ecosystems, entities.Ecosystem(strings.ToLower(strings.TrimSpace(raw))))
	}

	repoDir := "."
	if len(args) > 0 {
		repoDir = args[0]
	}

	return commands.UpdateOptions{
		RepoDir:    repoDir,
		ConfigPath: configPath,
		Token:      token,
		Types:      types,
		Ecosystems: ecosystems,
		Exclude:    exclude,
		Primary:    entities.Ecosystem(primary),
		DryRun:     dryRun,
		SkipTests:  skipTests,
		Verbose:    verbose,
		Output:     cmd.OutOrStdout(),
	}, nil
}

func printSummary(output io.Writer, run *entities.WorkflowRun) {
	if run.Outcome == entities.OutcomeDryRun {
		logger.Infof("%d updates would be applied (dry run)", run.Batch.Len())
		return
	}

	_, _ = fmt.Fprintf(output, "\nOutcome: %s\n", run.Outcome)
	if run.BranchName != "" {
		_, _ = fmt.Fprintf(output, "Branch: %s\n", run.BranchName)
	}
	if run.Batch.Len() > 0 {
		_, _ = fmt.Fprintf(output, "Updates: %d\n", run.Batch.Len())
	}
	if run.PullRequestURL != "" {
		_, _ = fmt.Fprintf(output, "Pull request: %s\n", run.PullRequestURL)
	}
	if run.Degraded {
		_, _ = fmt.Fprintf(output, "Warning: branch %s was pushed but the pull request must be opened manually\n",
			run.BranchName)
	}
	for _, err := range run.RollbackErrors {
		_, _ = fmt.Fprintf(output, "Rollback warning: %v\n", err)
	}
}
