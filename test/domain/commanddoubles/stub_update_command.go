//go:build integration || unit || test

package commanddoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"

	"github.com/rios0rios0/depflow/internal/domain/commands"
	"github.com/rios0rios0/depflow/internal/domain/entities"
)

// StubUpdateCommand is a stub implementation of commands.Update.
type StubUpdateCommand struct {
	ExecuteCallCount int
	ExecuteErr       error
	Run              *entities.WorkflowRun
	LastOpts         commands.UpdateOptions
}

var _ commands.Update = (*StubUpdateCommand)(nil)

func (s *StubUpdateCommand) Execute(
	_ context.Context,
	opts commands.UpdateOptions,
) (*entities.WorkflowRun, error) {
	s.ExecuteCallCount++
	s.LastOpts = opts
	return s.Run, s.ExecuteErr
}
