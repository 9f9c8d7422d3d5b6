//go:build unit

package entities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/depflow/internal/domain/entities"
	"github.com/rios0rios0/depflow/test/domain/entitybuilders"
)

func TestUpdateBatch(t *testing.T) {
	t.Parallel()

	t.Run("should group by ecosystem in first-appearance order", func(t *testing.T) {
		t.Parallel()

		// given
		builder := entitybuilders.NewUpdateBuilder()
		batch := entities.NewUpdateBatch([]entities.Update{
			builder.Clone().(*entitybuilders.UpdateBuilder).WithEcosystem(entities.EcosystemPython).WithName("requests").BuildUpdate(),
			builder.Clone().(*entitybuilders.UpdateBuilder).WithName("serde").BuildUpdate(),
			builder.Clone().(*entitybuilders.UpdateBuilder).WithEcosystem(entities.EcosystemPython).WithName("click").BuildUpdate(),
		})

		// when
		groups := batch.GroupByEcosystem()

		// then
		require.Len(t, groups, 2)
		assert.Equal(t, entities.EcosystemPython, groups[0].Ecosystem)
		assert.Equal(t, []string{"requests", "click"}, names(groups[0].Updates))
		assert.Equal(t, entities.EcosystemRust, groups[1].Ecosystem)
		assert.Equal(t, []entities.Ecosystem{entities.EcosystemPython, entities.EcosystemRust}, batch.Ecosystems())
	})

	t.Run("should not be affected by changes to the source slice or the returned copy", func(t *testing.T) {
		t.Parallel()

		// given
		updates := []entities.Update{entitybuilders.NewUpdateBuilder().WithName("serde").BuildUpdate()}
		batch := entities.NewUpdateBatch(updates)

		// when
		updates[0].Name = "changed"
		copied := batch.Updates()
		copied[0].Name = "changed again"

		// then
		assert.Equal(t, "serde", batch.Updates()[0].Name)
	})

	t.Run("should report an empty batch", func(t *testing.T) {
		t.Parallel()

		// when
		batch := entities.NewUpdateBatch(nil)

		// then
		assert.True(t, batch.IsEmpty())
		assert.Zero(t, batch.Len())
		assert.Empty(t, batch.GroupByEcosystem())
	})
}

func TestEcosystemDisplayName(t *testing.T) {
	t.Parallel()

	t.Run("should return the heading of each known ecosystem", func(t *testing.T) {
		t.Parallel()

		// given
		expected := map[entities.Ecosystem]string{
			entities.EcosystemRust:          "Rust",
			entities.EcosystemPython:        "Python",
			entities.EcosystemGolang:        "Go",
			entities.EcosystemGitHubActions: "GitHub Actions",
			entities.EcosystemTerraform:     "Terraform",
		}

		for ecosystem, heading := range expected {
			// when
			result := ecosystem.DisplayName()

			// then
			assert.Equal(t, heading, result)
		}
	})

	t.Run("should fall back to the identifier for unknown ecosystems", func(t *testing.T) {
		t.Parallel()

		// when
		result := entities.Ecosystem("npm").DisplayName()

		// then
		assert.Equal(t, "npm", result)
	})
}
