package repositories

import "context"

// CommandRunner invokes external tools on behalf of the ecosystems.
type CommandRunner interface {
	// Run executes name with args inside dir and returns its standard output. A non-zero exit
	// status is returned as an error that includes the tool's standard error.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}
