package commands

import (
	"time"

	"github.com/rios0rios0/depflow/internal/domain/entities"
)

// ParseRemoteURL exports parseRemoteURL for testing.
var ParseRemoteURL = parseRemoteURL //nolint:gochecknoglobals // test export

// ResolveTokenFromEnv exports resolveTokenFromEnv for testing.
var ResolveTokenFromEnv = resolveTokenFromEnv //nolint:gochecknoglobals // test export

// TokenEnvHint exports tokenEnvHint for testing.
var TokenEnvHint = tokenEnvHint //nolint:gochecknoglobals // test export

// GenerateCommitMessage exports generateCommitMessage for testing.
var GenerateCommitMessage = generateCommitMessage //nolint:gochecknoglobals // test export

// GeneratePRTitle exports generatePRTitle for testing.
var GeneratePRTitle = generatePRTitle //nolint:gochecknoglobals // test export

// GeneratePRDescription exports generatePRDescription for testing.
var GeneratePRDescription = generatePRDescription //nolint:gochecknoglobals // test export

// SetClock replaces the workflow clock for testing.
func (it *Workflow) SetClock(now func() time.Time) {
	it.now = now
}

// RemoteInfo exports entities.RemoteInfo for testing.
type RemoteInfo = entities.RemoteInfo
