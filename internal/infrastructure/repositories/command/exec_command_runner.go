package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// ExecCommandRunner implements repositories.CommandRunner with os/exec.
type ExecCommandRunner struct{}

// NewExecCommandRunner creates a runner that spawns real processes.
func NewExecCommandRunner() repositories.CommandRunner {
	return &ExecCommandRunner{}
}

// Run executes the command and returns its standard output.
func (it *ExecCommandRunner) Run(
	ctx context.Context,
	dir, name string,
	args ...string,
) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debugf("Running %s %s (in %s)", name, strings.Join(args, " "), dir)
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		return stdout.Bytes(), fmt.Errorf("%s timed out: %w", name, ctxErr)
	}
	if err != nil {
		return stdout.Bytes(), fmt.Errorf(
			"%s %s failed: %w\n%s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()),
		)
	}
	return stdout.Bytes(), nil
}
