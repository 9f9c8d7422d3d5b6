//go:build integration || unit || test

package repositorydoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// CommandResponse is the canned result of one command line.
type CommandResponse struct {
	Output []byte
	Err    error
}

// CommandCall records a single invocation of Run.
type CommandCall struct {
	Dir  string
	Name string
	Args []string
}

// Line returns the call as "<binary> <args...>", using the binary's base name.
func (c CommandCall) Line() string {
	return strings.TrimSpace(filepath.Base(c.Name) + " " + strings.Join(c.Args, " "))
}

// StubCommandRunner implements repositories.CommandRunner with canned responses keyed by
// command line (see CommandCall.Line). Unknown commands succeed with empty output.
type StubCommandRunner struct {
	Responses map[string]CommandResponse

	mu sync.Mutex
	// spy: calls received
	Calls []CommandCall
}

var _ repositories.CommandRunner = (*StubCommandRunner)(nil)

func (s *StubCommandRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	call := CommandCall{Dir: dir, Name: name, Args: args}

	s.mu.Lock()
	s.Calls = append(s.Calls, call)
	s.mu.Unlock()

	response := s.Responses[call.Line()]
	return response.Output, response.Err
}

// Lines returns every recorded call as a command line.
func (s *StubCommandRunner) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, 0, len(s.Calls))
	for _, call := range s.Calls {
		lines = append(lines, call.Line())
	}
	return lines
}
