//go:build unit

package entities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/test/domain/entitybuilders"
)

func TestInsertChangelogEntries(t *testing.T) {
	t.Parallel()

	t.Run("should insert entries into empty Unreleased section", func(t *testing.T) {
		t.Parallel()

		// given
		content := "# Changelog\n\n## [Unreleased]\n\n## [1.0.0] - 2026-01-01\n\n### Added\n\n- initial release\n"
		entries := []string{"- changed the rust dependency `serde` from `1.0.0` to `1.0.1`"}

		// when
		result, changed := entities.InsertChangelogEntries(content, entries)

		// then
		assert.True(t, changed)
		assert.Contains(t, result, "## [Unreleased]\n\n### Changed\n\n- changed the rust dependency")
		assert.Contains(t, result, "## [1.0.0] - 2026-01-01")
	})

	t.Run("should append entries to existing Changed subsection", func(t *testing.T) {
		t.Parallel()

		// given
		content := "# Changelog\n\n## [Unreleased]\n\n### Changed\n\n- existing change\n\n## [1.0.0] - 2026-01-01\n"
		entries := []string{"- changed the terraform dependency `networking` from `v1.0.0` to `v2.0.0`"}

		// when
		result, changed := entities.InsertChangelogEntries(content, entries)

		// then
		assert.True(t, changed)
		assert.Contains(t, result, "- existing change\n- changed the terraform dependency")
		assert.Contains(t, result, "## [1.0.0] - 2026-01-01")
	})

	t.Run("should insert Changed subsection when other subsections exist", func(t *testing.T) {
		t.Parallel()

		// given
		content := "# Changelog\n\n## [Unreleased]\n\n### Fixed\n\n- fixed a bug\n\n## [1.0.0] - 2026-01-01\n"
		entries := []string{"- changed the golang dependency `golang.org/x/mod` from `v0.33.0` to `v0.34.0`"}

		// when
		result, changed := entities.InsertChangelogEntries(content, entries)

		// then
		assert.True(t, changed)
		assert.Contains(t, result, "## [Unreleased]\n\n### Changed\n\n- changed the golang dependency")
		assert.Contains(t, result, "### Fixed\n\n- fixed a bug")
	})

	t.Run("should only touch the Unreleased Changed subsection", func(t *testing.T) {
		t.Parallel()

		// given
		content := "## [Unreleased]\n\n## [1.0.0] - 2026-01-01\n\n### Changed\n\n- old change\n"
		entries := []string{"- new change"}

		// when
		result, changed := entities.InsertChangelogEntries(content, entries)

		// then
		assert.True(t, changed)
		assert.Contains(t, result, "### Changed\n\n- old change\n")
		assert.Contains(t, result, "## [Unreleased]\n\n### Changed\n\n- new change\n")
	})

	t.Run("should return content unchanged when Unreleased section is missing", func(t *testing.T) {
		t.Parallel()

		// given
		content := "# Changelog\n\n## [1.0.0] - 2026-01-01\n"

		// when
		result, changed := entities.InsertChangelogEntries(content, []string{"- entry"})

		// then
		assert.False(t, changed)
		assert.Equal(t, content, result)
	})

	t.Run("should return content unchanged when there is nothing to insert", func(t *testing.T) {
		t.Parallel()

		// given
		content := "# Changelog\n\n## [Unreleased]\n"

		// when
		result, changed := entities.InsertChangelogEntries(content, nil)

		// then
		assert.False(t, changed)
		assert.Equal(t, content, result)
	})
}

func TestChangelogEntries(t *testing.T) {
	t.Parallel()

	t.Run("should render one bullet per update in batch order", func(t *testing.T) {
		t.Parallel()

		// given
		batch := entities.NewUpdateBatch([]entities.Update{
			entitybuilders.NewUpdateBuilder().WithName("serde").WithVersions("1.0.0", "1.0.1").BuildUpdate(),
			entitybuilders.NewUpdateBuilder().
				WithEcosystem(entities.EcosystemGitHubActions).
				WithName("actions/checkout").
				WithVersions("v3", "v4").
				BuildUpdate(),
		})

		// when
		entries := entities.ChangelogEntries(batch)

		// then
		assert.Equal(t, []string{
			"- changed the rust dependency `serde` from `1.0.0` to `1.0.1`",
			"- changed the github-actions dependency `actions/checkout` from `v3` to `v4`",
		}, entries)
	})
}
