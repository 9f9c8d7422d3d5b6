//go:build unit

package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/depflow/internal/domain/commands"
	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/internal/domain/repositories"
	"github.com/rios0rios0/depflow/test/domain/entitybuilders"
	doubles "github.com/rios0rios0/depflow/test/infrastructure/repositorydoubles"
)

const expectedBranch = "deps/auto-update-20260102-030405"

type workflowFixture struct {
	vcs     *doubles.SpyVersionControlRepository
	hosting *doubles.SpyHostingRepository
	rust    *doubles.SpyEcosystemRepository
	python  *doubles.SpyEcosystemRepository
	root    string
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	return &workflowFixture{
		vcs:     doubles.NewSpyVersionControlRepository("main"),
		hosting: &doubles.SpyHostingRepository{ProviderName: "github", Token: "token"},
		rust:    &doubles.SpyEcosystemRepository{EcosystemName: entities.EcosystemRust, DetectResult: true},
		python:  &doubles.SpyEcosystemRepository{EcosystemName: entities.EcosystemPython, DetectResult: true},
		root:    t.TempDir(),
	}
}

func (f *workflowFixture) workflow() *commands.Workflow {
	workflow := commands.NewWorkflow(
		f.vcs,
		f.hosting,
		[]repositories.EcosystemRepository{f.rust, f.python},
		repositories.Workspace{RootDir: f.root, Lookup: f.hosting},
		entities.Repository{Name: "widget", Organization: "acme", DefaultBranch: "refs/heads/main"},
		"main",
		time.Second,
	)
	workflow.SetClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) })
	return workflow
}

func defaultOptions() commands.WorkflowOptions {
	return commands.WorkflowOptions{
		Policy:           entities.UpdatePolicy{AllowedTypes: []entities.UpdateType{entities.UpdateTypeMinor, entities.UpdateTypePatch}},
		PrimaryEcosystem: entities.EcosystemRust,
		BranchPrefix:     entities.DefaultBranchPrefix,
	}
}

func rustUpdate(name, current, latest string) entities.Update {
	return entitybuilders.NewUpdateBuilder().
		WithEcosystem(entities.EcosystemRust).
		WithName(name).
		WithVersions(current, latest).
		BuildUpdate()
}

func pythonUpdate(name, current, latest string) entities.Update {
	return entitybuilders.NewUpdateBuilder().
		WithEcosystem(entities.EcosystemPython).
		WithName(name).
		WithVersions(current, latest).
		WithManifestPath("python/pyproject.toml").
		BuildUpdate()
}

func dependencyLines(message string) []string {
	var lines []string
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, "- ") {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestWorkflowRun(t *testing.T) {
	t.Parallel()

	t.Run("should finish rejected-empty without touching version control when nothing is outdated", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		require.NoError(t, run.Err)
		assert.Equal(t, entities.OutcomeRejectedEmpty, run.Outcome)
		assert.Equal(t, entities.StateDone, run.State)
		assert.Zero(t, f.vcs.MutatingCalls())
		assert.Empty(t, f.hosting.PRInputs)
		assert.Empty(t, run.BranchName)
	})

	t.Run("should finish rejected-empty when every update is filtered out", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("tokio", "1.0.0", "2.0.0")}

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		assert.Equal(t, entities.OutcomeRejectedEmpty, run.Outcome)
		assert.Zero(t, f.vcs.MutatingCalls())
		assert.Empty(t, f.rust.AppliedUpdates)
	})

	t.Run("should only print the accepted updates in dry-run mode", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.python.Updates = []entities.Update{pythonUpdate("requests", "2.31.0", "2.32.0")}
		var output bytes.Buffer
		opts := defaultOptions()
		opts.DryRun = true
		opts.Output = &output

		// when
		run := f.workflow().Run(context.Background(), opts)

		// then
		require.NoError(t, run.Err)
		assert.Equal(t, entities.OutcomeDryRun, run.Outcome)
		assert.Equal(t,
			"rust: serde 1.0.0 → 1.0.1 (patch)\npython: requests 2.31.0 → 2.32.0 (minor)\n",
			output.String(),
		)
		assert.Zero(t, f.vcs.MutatingCalls())
		assert.Empty(t, f.rust.AppliedUpdates)
	})

	t.Run("should branch, patch, validate, commit, push and publish on the happy path", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.python.Updates = []entities.Update{pythonUpdate("requests", "2.31.0", "2.32.0")}

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		require.NoError(t, run.Err)
		assert.Equal(t, entities.OutcomePublished, run.Outcome)
		assert.Equal(t, expectedBranch, run.BranchName)
		assert.False(t, run.Degraded)
		assert.Equal(t, "https://example.com/pr/1", run.PullRequestURL)
		assert.Equal(t, []string{
			"create " + expectedBranch + " from main",
			"stage",
			"commit",
			"push " + expectedBranch,
		}, f.vcs.Calls)
		assert.Equal(t, []entities.WorkflowState{
			entities.StateDiscovering,
			entities.StateFiltering,
			entities.StateBranchCreated,
			entities.StatePatching,
			entities.StateValidating,
			entities.StateCommitting,
			entities.StatePushing,
			entities.StatePublishing,
		}, run.CompletedStates())

		require.Len(t, f.hosting.PRInputs, 1)
		assert.Equal(t, "refs/heads/"+expectedBranch, f.hosting.PRInputs[0].SourceBranch)
		assert.Equal(t, "refs/heads/main", f.hosting.PRInputs[0].TargetBranch)
		assert.Equal(t, "chore(deps): updated 2 dependencies (rust, python)", f.hosting.PRInputs[0].Title)
		assert.Equal(t, 1, f.rust.TestRuns)
		assert.Equal(t, 1, f.python.TestRuns)
	})

	t.Run("should accept only the minor update in the foo and bar scenario", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{
			rustUpdate("foo", "1.0.0", "1.1.0"),
			rustUpdate("bar", "2.0.0", "3.0.0"),
		}
		opts := defaultOptions()
		opts.Policy = entities.UpdatePolicy{AllowedTypes: []entities.UpdateType{entities.UpdateTypeMinor}}

		// when
		run := f.workflow().Run(context.Background(), opts)

		// then
		require.NoError(t, run.Err)
		require.Equal(t, 1, run.Batch.Len())
		assert.Equal(t, "foo", run.Batch.Updates()[0].Name)
		assert.Equal(t, entities.UpdateTypeMinor, run.Batch.Updates()[0].Type())
		require.Len(t, f.rust.AppliedUpdates, 1)
		require.Len(t, f.vcs.CommitMessages, 1)
		assert.Equal(t, []string{"- foo 1.0.0 → 1.1.0"}, dependencyLines(f.vcs.CommitMessages[0]))
	})

	t.Run("should merge discovered updates in ecosystem order and survive a panicking discoverer", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.DiscoverPanic = "boom"
		f.python.Updates = []entities.Update{
			pythonUpdate("requests", "2.31.0", "2.32.0"),
			pythonUpdate("click", "8.1.0", "8.1.7"),
		}
		opts := defaultOptions()
		opts.DryRun = true
		opts.Output = &bytes.Buffer{}

		// when
		run := f.workflow().Run(context.Background(), opts)

		// then
		require.Equal(t, 2, run.Batch.Len())
		assert.Equal(t, "requests", run.Batch.Updates()[0].Name)
		assert.Equal(t, "click", run.Batch.Updates()[1].Name)
		assert.Equal(t, 1, f.rust.DiscoverCalls)
	})

	t.Run("should only discover the selected ecosystems", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		opts := defaultOptions()
		opts.Ecosystems = []entities.Ecosystem{entities.EcosystemPython}

		// when
		run := f.workflow().Run(context.Background(), opts)

		// then
		assert.Equal(t, entities.OutcomeRejectedEmpty, run.Outcome)
		assert.Zero(t, f.rust.DiscoverCalls)
		assert.Equal(t, 1, f.python.DiscoverCalls)
	})

	t.Run("should fail without rollback when the branch cannot be created", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.vcs.CreateBranchErr = errors.New("branch exists")

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		require.ErrorIs(t, run.Err, commands.ErrWorkflowFailed)
		assert.Equal(t, entities.OutcomeFailed, run.Outcome)
		assert.Equal(t, entities.StateFailed, run.State)
		assert.Equal(t, []string{"create " + expectedBranch + " from main"}, f.vcs.Calls)
		assert.Empty(t, f.rust.AppliedUpdates)
	})

	t.Run("should keep the pushed branch and report a degraded publish when the PR cannot be opened", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.hosting.CreatePRErr = errors.New("403 forbidden")

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		require.NoError(t, run.Err)
		assert.Equal(t, entities.OutcomePublished, run.Outcome)
		assert.True(t, run.Degraded)
		assert.Empty(t, run.PullRequestURL)
		assert.True(t, f.vcs.LocalBranches[expectedBranch])
		assert.True(t, f.vcs.RemoteBranches[expectedBranch])
		assert.NotContains(t, f.vcs.Calls, "checkout main")
	})

	t.Run("should not block on a failing secondary test suite", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.python.TestsErr = errors.New("pytest failed")

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		require.NoError(t, run.Err)
		assert.Equal(t, entities.OutcomePublished, run.Outcome)
	})

	t.Run("should skip validation when tests are disabled", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.rust.TestsErr = errors.New("would fail")
		opts := defaultOptions()
		opts.SkipTests = true

		// when
		run := f.workflow().Run(context.Background(), opts)

		// then
		require.NoError(t, run.Err)
		assert.Zero(t, f.rust.TestRuns)
		assert.NotContains(t, run.CompletedStates(), entities.StateValidating)
		require.Len(t, f.hosting.PRInputs, 1)
		assert.Contains(t, f.hosting.PRInputs[0].Description, "skipped")
	})

	t.Run("should add changelog entries when enabled", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		changelog := filepath.Join(f.root, "CHANGELOG.md")
		require.NoError(t, os.WriteFile(changelog, []byte("# Changelog\n\n## [Unreleased]\n\n## [1.0.0] - 2026-01-01\n"), 0o600))
		opts := defaultOptions()
		opts.Changelog = true

		// when
		run := f.workflow().Run(context.Background(), opts)

		// then
		require.NoError(t, run.Err)
		content, err := os.ReadFile(changelog)
		require.NoError(t, err)
		assert.Contains(t, string(content), "- changed the rust dependency `serde` from `1.0.0` to `1.0.1`")
	})
}

func TestWorkflowRollback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		inject func(f *workflowFixture)
		state  entities.WorkflowState
	}{
		{
			name:   "patch application",
			inject: func(f *workflowFixture) { f.rust.ApplyErrFor = map[string]error{"tokio": repositories.ErrPatternNotFound} },
			state:  entities.StatePatching,
		},
		{
			name:   "primary validation",
			inject: func(f *workflowFixture) { f.rust.TestsErr = errors.New("cargo test failed") },
			state:  entities.StateValidating,
		},
		{
			name:   "commit",
			inject: func(f *workflowFixture) { f.vcs.CommitErr = errors.New("nothing to commit") },
			state:  entities.StateCommitting,
		},
		{
			name:   "push",
			inject: func(f *workflowFixture) { f.vcs.PushErr = errors.New("remote rejected") },
			state:  entities.StatePushing,
		},
	}

	for _, tt := range tests {
		t.Run("should roll back when "+tt.name+" fails", func(t *testing.T) {
			t.Parallel()

			// given
			f := newWorkflowFixture(t)
			f.rust.Updates = []entities.Update{
				rustUpdate("tokio", "1.36.0", "1.37.0"),
				rustUpdate("serde", "1.0.0", "1.0.1"),
			}
			tt.inject(f)

			// when
			run := f.workflow().Run(context.Background(), defaultOptions())

			// then
			require.ErrorIs(t, run.Err, commands.ErrWorkflowFailed)
			assert.Equal(t, entities.OutcomeFailedAndRolledBack, run.Outcome)
			assert.Equal(t, entities.StateFailed, run.State)
			assert.Equal(t, "main", f.vcs.Branch)
			assert.False(t, f.vcs.LocalBranches[expectedBranch])
			assert.False(t, f.vcs.RemoteBranches[expectedBranch])
			assert.Contains(t, f.vcs.Calls, "checkout main")
			assert.Contains(t, f.vcs.Calls, "delete local "+expectedBranch)
			assert.Empty(t, f.hosting.PRInputs)
			assert.Empty(t, run.RollbackErrors)

			var failed entities.StepRecord
			for _, step := range run.Steps {
				if step.Err != nil && step.State != entities.StateRollingBack {
					failed = step
				}
			}
			assert.Equal(t, tt.state, failed.State)
		})
	}

	t.Run("should abort the remaining patches after the first failure", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{
			rustUpdate("tokio", "1.36.0", "1.37.0"),
			rustUpdate("serde", "1.0.0", "1.0.1"),
		}
		f.rust.ApplyErrFor = map[string]error{"tokio": repositories.ErrPatternNotFound}

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		require.ErrorIs(t, run.Err, repositories.ErrPatternNotFound)
		assert.Len(t, f.rust.AppliedUpdates, 1)
		assert.NotContains(t, f.vcs.Calls, "commit")
	})

	t.Run("should log and keep secondary rollback errors without escaping", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		f.vcs.PushErr = errors.New("remote rejected")
		f.vcs.CheckoutErr = errors.New("index locked")

		// when
		run := f.workflow().Run(context.Background(), defaultOptions())

		// then
		assert.Equal(t, entities.OutcomeFailedAndRolledBack, run.Outcome)
		require.Len(t, run.RollbackErrors, 1)
		assert.Contains(t, f.vcs.Calls, "delete local "+expectedBranch)
	})

	t.Run("should roll back when the run is interrupted after patching started", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.rust.ApplyFn = func(_ repositories.Workspace, _ entities.Update) error {
			cancel()
			return nil
		}

		// when
		run := f.workflow().Run(ctx, defaultOptions())

		// then
		require.ErrorIs(t, run.Err, context.Canceled)
		assert.Equal(t, entities.OutcomeFailedAndRolledBack, run.Outcome)
		assert.Contains(t, f.vcs.Calls, "checkout main")
		assert.NotContains(t, f.vcs.Calls, "commit")
	})

	t.Run("should delete the pushed branch when interrupted before publishing", func(t *testing.T) {
		t.Parallel()

		// given
		f := newWorkflowFixture(t)
		f.rust.Updates = []entities.Update{rustUpdate("serde", "1.0.0", "1.0.1")}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.vcs.OnPush = cancel

		// when
		run := f.workflow().Run(ctx, defaultOptions())

		// then
		require.ErrorIs(t, run.Err, commands.ErrWorkflowFailed)
		require.ErrorIs(t, run.Err, context.Canceled)
		assert.Equal(t, entities.OutcomeFailedAndRolledBack, run.Outcome)
		assert.True(t, run.Pushed)
		assert.Contains(t, f.vcs.Calls, "delete local "+expectedBranch)
		assert.Contains(t, f.vcs.Calls, "delete remote "+expectedBranch)
		assert.False(t, f.vcs.RemoteBranches[expectedBranch])
		assert.False(t, f.vcs.LocalBranches[expectedBranch])
		assert.Equal(t, "main", f.vcs.Branch)
		assert.Empty(t, f.hosting.PRInputs)
	})
}
