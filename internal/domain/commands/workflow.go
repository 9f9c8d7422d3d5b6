package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

const (
	branchTimestampFormat = "20060102-150405"
	changelogFile         = "CHANGELOG.md"
	rollbackTimeout       = 2 * time.Minute
)

// ErrWorkflowFailed wraps the error of a run that ended in the failed state.
var ErrWorkflowFailed = errors.New("dependency update workflow failed")

// WorkflowOptions holds the per-run policy of the update workflow.
type WorkflowOptions struct {
	Policy           entities.UpdatePolicy
	Ecosystems       []entities.Ecosystem // empty means every registered ecosystem
	PrimaryEcosystem entities.Ecosystem
	BranchPrefix     string
	DryRun           bool
	SkipTests        bool
	Changelog        bool
	Output           io.Writer // receives the dry-run report
}

// Workflow drives one update cycle: discover, filter, branch, patch, validate, commit, push,
// publish, and roll back on any batch-fatal failure. It is the only component that mutates
// version-control state.
type Workflow struct {
	vcs            repositories.VersionControlRepository
	hosting        repositories.HostingRepository
	ecosystems     []repositories.EcosystemRepository
	workspace      repositories.Workspace
	repo           entities.Repository
	defaultBranch  string
	networkTimeout time.Duration
	now            func() time.Time
}

// NewWorkflow creates a workflow over the given collaborators. The ecosystems slice order is
// the order discovered updates are merged in.
func NewWorkflow(
	vcs repositories.VersionControlRepository,
	hosting repositories.HostingRepository,
	ecosystems []repositories.EcosystemRepository,
	workspace repositories.Workspace,
	repo entities.Repository,
	defaultBranch string,
	networkTimeout time.Duration,
) *Workflow {
	return &Workflow{
		vcs:            vcs,
		hosting:        hosting,
		ecosystems:     ecosystems,
		workspace:      workspace,
		repo:           repo,
		defaultBranch:  defaultBranch,
		networkTimeout: networkTimeout,
		now:            time.Now,
	}
}

// Run executes the state machine and returns the finished run. The run's Outcome tells the
// caller how it ended; Err is set whenever the outcome is not a success.
func (it *Workflow) Run(ctx context.Context, opts WorkflowOptions) *entities.WorkflowRun {
	run := entities.NewWorkflowRun(it.defaultBranch)

	var updates []entities.Update
	_ = it.step(run, entities.StateDiscovering, func() error {
		updates = it.discover(ctx, opts.Ecosystems)
		return nil
	})

	_ = it.step(run, entities.StateFiltering, func() error {
		run.Batch = entities.NewUpdateBatch(entities.FilterUpdates(updates, opts.Policy))
		logger.Infof("%d of %d discovered updates accepted by policy", run.Batch.Len(), len(updates))
		return nil
	})

	if run.Batch.IsEmpty() {
		logger.Info("No dependency updates to apply, nothing to do.")
		run.Finish(entities.StateDone, entities.OutcomeRejectedEmpty)
		return run
	}

	if opts.DryRun {
		it.reportDryRun(run.Batch, opts.Output)
		run.Finish(entities.StateDone, entities.OutcomeDryRun)
		return run
	}

	run.BranchName = opts.BranchPrefix + it.now().Format(branchTimestampFormat)
	if err := it.step(run, entities.StateBranchCreated, func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return it.vcs.CreateBranch(run.BranchName, it.defaultBranch)
	}); err != nil {
		logger.Errorf("Failed to create branch %q: %v", run.BranchName, err)
		run.Err = fmt.Errorf("%w: create branch: %w", ErrWorkflowFailed, err)
		run.Finish(entities.StateFailed, entities.OutcomeFailed)
		return run
	}
	run.BranchCreated = true

	if err := it.applyAndPush(ctx, run, opts); err != nil {
		it.rollback(ctx, run, err)
		return run
	}

	// an interrupt after the push still rolls back, which removes the remote branch too
	if ctx.Err() != nil {
		it.rollback(ctx, run, fmt.Errorf("interrupted before %s: %w", entities.StatePublishing, ctx.Err()))
		return run
	}

	it.publish(ctx, run, !opts.SkipTests)
	run.Finish(entities.StateDone, entities.OutcomePublished)
	return run
}

// applyAndPush runs the batch-fatal steps in order. Any error it returns requires rollback.
func (it *Workflow) applyAndPush(ctx context.Context, run *entities.WorkflowRun, opts WorkflowOptions) error {
	steps := []struct {
		state entities.WorkflowState
		fn    func() error
	}{
		{entities.StatePatching, func() error { return it.patch(ctx, run.Batch, opts.Changelog) }},
		{entities.StateValidating, func() error { return it.validate(ctx, opts.PrimaryEcosystem) }},
		{entities.StateCommitting, func() error { return it.commit(run.Batch) }},
		{entities.StatePushing, func() error { return it.push(ctx, run) }},
	}

	for _, s := range steps {
		if s.state == entities.StateValidating && opts.SkipTests {
			logger.Info("Skipping validation, tests disabled for this run")
			continue
		}
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted before %s: %w", s.state, ctx.Err())
		}
		if err := it.step(run, s.state, s.fn); err != nil {
			return fmt.Errorf("%s: %w", s.state, err)
		}
	}
	return nil
}

// step records the state transition around fn.
func (it *Workflow) step(run *entities.WorkflowRun, state entities.WorkflowState, fn func() error) error {
	run.Enter(state, it.now())
	logger.Debugf("Workflow entered %s", state)
	err := fn()
	run.Complete(err, it.now())
	return err
}

// --- discovering ---

// discover runs the selected discoverers concurrently and merges their results in ecosystem
// order. A panicking discoverer contributes nothing.
func (it *Workflow) discover(ctx context.Context, selected []entities.Ecosystem) []entities.Update {
	ecosystems := it.selectEcosystems(selected)
	results := make([][]entities.Update, len(ecosystems))

	var group errgroup.Group
	for i, ecosystem := range ecosystems {
		group.Go(func() error {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Errorf("[%s] Discovery aborted: %v", ecosystem.Name(), recovered)
				}
			}()
			results[i] = ecosystem.Discover(ctx, it.workspace)
			return nil
		})
	}
	_ = group.Wait()

	var updates []entities.Update
	for _, result := range results {
		updates = append(updates, result...)
	}
	return updates
}

func (it *Workflow) selectEcosystems(selected []entities.Ecosystem) []repositories.EcosystemRepository {
	if len(selected) == 0 {
		return it.ecosystems
	}

	wanted := make(map[entities.Ecosystem]bool, len(selected))
	for _, name := range selected {
		wanted[name] = true
	}

	var result []repositories.EcosystemRepository
	for _, ecosystem := range it.ecosystems {
		if wanted[ecosystem.Name()] {
			result = append(result, ecosystem)
		}
	}
	return result
}

func (it *Workflow) ecosystem(name entities.Ecosystem) repositories.EcosystemRepository {
	for _, ecosystem := range it.ecosystems {
		if ecosystem.Name() == name {
			return ecosystem
		}
	}
	return nil
}

func (it *Workflow) reportDryRun(batch entities.UpdateBatch, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	for _, line := range generateDryRunLines(batch) {
		_, _ = fmt.Fprintln(output, line)
	}
}

// --- patching ---

func (it *Workflow) patch(ctx context.Context, batch entities.UpdateBatch, changelog bool) error {
	for _, group := range batch.GroupByEcosystem() {
		ecosystem := it.ecosystem(group.Ecosystem)
		if ecosystem == nil {
			return fmt.Errorf("no patcher registered for ecosystem %q", group.Ecosystem)
		}

		for _, update := range group.Updates {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Infof(
				"[%s] Updating %s %s → %s", update.Ecosystem, update.Name,
				update.CurrentVersion, update.LatestVersion,
			)
			if err := ecosystem.Apply(ctx, it.workspace, update); err != nil {
				return err
			}
		}
	}

	if changelog {
		return it.updateChangelog(batch)
	}
	return nil
}

func (it *Workflow) updateChangelog(batch entities.UpdateBatch) error {
	path := it.workspace.Path(changelogFile)
	info, err := os.Stat(path)
	if err != nil {
		logger.Debugf("No %s found, skipping changelog update", changelogFile)
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", changelogFile, err)
	}

	updated, changed := entities.InsertChangelogEntries(string(content), entities.ChangelogEntries(batch))
	if !changed {
		logger.Warnf("%s has no [Unreleased] section, skipping changelog update", changelogFile)
		return nil
	}

	if err = os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", changelogFile, err)
	}
	return nil
}

// --- validating ---

// validate runs every present ecosystem's test suite. Only a failure of the primary
// ecosystem's suite is returned; the others are logged.
func (it *Workflow) validate(ctx context.Context, primary entities.Ecosystem) error {
	for _, ecosystem := range it.ecosystems {
		if !ecosystem.Detect(it.workspace) {
			continue
		}

		err := ecosystem.RunTests(ctx, it.workspace)
		if err == nil {
			logger.Infof("[%s] Tests passed", ecosystem.Name())
			continue
		}
		if ecosystem.Name() == primary {
			return fmt.Errorf("primary ecosystem %s: %w", primary, err)
		}
		logger.Warnf("[%s] Tests failed (not blocking): %v", ecosystem.Name(), err)
	}
	return nil
}

// --- committing, pushing and publishing ---

func (it *Workflow) commit(batch entities.UpdateBatch) error {
	if err := it.vcs.StageAll(); err != nil {
		return err
	}

	hash, err := it.vcs.Commit(generateCommitMessage(batch))
	if err != nil {
		return err
	}
	logger.Infof("Committed %d updates as %s", batch.Len(), hash)
	return nil
}

func (it *Workflow) push(ctx context.Context, run *entities.WorkflowRun) error {
	pushCtx, cancel := it.withNetworkTimeout(ctx)
	defer cancel()

	if err := it.vcs.Push(pushCtx, run.BranchName); err != nil {
		return err
	}
	run.Pushed = true
	logger.Infof("Pushed branch %q", run.BranchName)
	return nil
}

// publish opens the proposal. A failure leaves the pushed branch in place and marks the run
// as degraded.
func (it *Workflow) publish(ctx context.Context, run *entities.WorkflowRun, testsRan bool) {
	_ = it.step(run, entities.StatePublishing, func() error {
		publishCtx, cancel := it.withNetworkTimeout(ctx)
		defer cancel()

		pr, err := it.hosting.CreatePullRequest(publishCtx, it.repo, entities.PullRequestInput{
			SourceBranch: "refs/heads/" + run.BranchName,
			TargetBranch: "refs/heads/" + it.defaultBranch,
			Title:        generatePRTitle(run.Batch),
			Description:  generatePRDescription(run.Batch, testsRan),
		})
		if err != nil {
			run.Degraded = true
			logger.Warnf(
				"Updates were pushed to %q but the pull request could not be created: %v. "+
					"Please open it manually.", run.BranchName, err,
			)
			return err
		}

		run.PullRequestURL = pr.URL
		logger.Infof("Created PR #%d: %s", pr.ID, pr.URL)
		return nil
	})
}

// --- rolling back ---

// rollback restores the default branch and deletes the working branch. Secondary errors are
// collected and logged, never returned.
func (it *Workflow) rollback(ctx context.Context, run *entities.WorkflowRun, cause error) {
	logger.Errorf("Workflow failed during %s: %v", run.State, cause)
	run.Err = fmt.Errorf("%w: %w", ErrWorkflowFailed, cause)

	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	_ = it.step(run, entities.StateRollingBack, func() error {
		if err := it.vcs.Checkout(it.defaultBranch); err != nil {
			run.RollbackErrors = append(run.RollbackErrors, fmt.Errorf("checkout %s: %w", it.defaultBranch, err))
		}
		if run.BranchCreated {
			if err := it.vcs.DeleteBranch(rollbackCtx, run.BranchName, repositories.BranchScopeLocal); err != nil {
				run.RollbackErrors = append(run.RollbackErrors, fmt.Errorf("delete local branch: %w", err))
			}
		}
		if run.Pushed {
			if err := it.vcs.DeleteBranch(rollbackCtx, run.BranchName, repositories.BranchScopeRemote); err != nil {
				run.RollbackErrors = append(run.RollbackErrors, fmt.Errorf("delete remote branch: %w", err))
			}
		}
		return errors.Join(run.RollbackErrors...)
	})

	if len(run.RollbackErrors) > 0 {
		for _, err := range run.RollbackErrors {
			logger.Warnf("Rollback hit a secondary error: %v", err)
		}
	} else {
		logger.Infof("Rollback completed, %q checked out and %q deleted", it.defaultBranch, run.BranchName)
	}
	run.Finish(entities.StateFailed, entities.OutcomeFailedAndRolledBack)
}

func (it *Workflow) withNetworkTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if it.networkTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, it.networkTimeout)
}
