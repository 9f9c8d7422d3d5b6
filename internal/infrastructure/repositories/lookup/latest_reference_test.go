//go:build unit

package lookup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rios0rios0/depflow/internal/infrastructure/repositories/lookup"
	doubles "github.com/rios0rios0/depflow/test/infrastructure/repositorydoubles"
)

func TestLatestReference(t *testing.T) {
	t.Parallel()

	t.Run("should prefer the newest release", func(t *testing.T) {
		t.Parallel()

		// given
		hosting := &doubles.SpyHostingRepository{
			Releases: map[string][]string{"acme/tool": {"v2.1.0", "v2.0.0"}},
			Tags:     map[string][]string{"acme/tool": {"v3.0.0-rc1"}},
		}

		// when
		latest := lookup.LatestReference(context.Background(), hosting, "acme/tool")

		// then
		assert.Equal(t, "v2.1.0", latest)
		assert.Empty(t, hosting.TagLookups)
	})

	t.Run("should fall back to the newest tag", func(t *testing.T) {
		t.Parallel()

		// given
		hosting := &doubles.SpyHostingRepository{Tags: map[string][]string{"acme/tool": {"v1.4.0", "v1.3.0"}}}

		// when
		latest := lookup.LatestReference(context.Background(), hosting, "acme/tool")

		// then
		assert.Equal(t, "v1.4.0", latest)
	})

	t.Run("should yield nothing when there is neither a release nor a tag", func(t *testing.T) {
		t.Parallel()

		// given
		hosting := &doubles.SpyHostingRepository{}

		// when
		latest := lookup.LatestReference(context.Background(), hosting, "acme/tool")

		// then
		assert.Empty(t, latest)
	})

	t.Run("should yield nothing when the lookup fails", func(t *testing.T) {
		t.Parallel()

		// given
		hosting := &doubles.SpyHostingRepository{ReleasesErr: errors.New("404 Not Found")}

		// when
		latest := lookup.LatestReference(context.Background(), hosting, "acme/tool")

		// then
		assert.Empty(t, latest)
	})
}

func TestCachedLookup(t *testing.T) {
	t.Parallel()

	t.Run("should resolve each identifier once", func(t *testing.T) {
		t.Parallel()

		// given
		hosting := &doubles.SpyHostingRepository{Releases: map[string][]string{"acme/tool": {"v2"}}}
		cache := lookup.NewCachedLookup(hosting)

		// when
		first := cache.Latest(context.Background(), "acme/tool")
		second := cache.Latest(context.Background(), "acme/tool")

		// then
		assert.Equal(t, "v2", first)
		assert.Equal(t, first, second)
		assert.Equal(t, []string{"acme/tool"}, hosting.ReleaseLookups)
	})
}

func TestRepositoryIdentifier(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"actions/checkout":                          "actions/checkout",
		"github/codeql-action/init":                 "github/codeql-action",
		"acme/shared/.github/workflows/release.yml": "acme/shared",
		"/acme/tool/":                               "acme/tool",
		"checkout":                                  "",
		"":                                          "",
	}

	for input, expected := range tests {
		t.Run("should reduce "+input, func(t *testing.T) {
			t.Parallel()

			// when
			result := lookup.RepositoryIdentifier(input)

			// then
			assert.Equal(t, expected, result)
		})
	}
}
