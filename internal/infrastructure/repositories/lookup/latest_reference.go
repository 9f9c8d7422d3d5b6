// Package lookup resolves the newest published reference of a remote project.
package lookup

import (
	"context"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// LatestReference returns the most recent release tag of the project, falling back to the
// most recent tag when it has no releases. It returns "" when neither exists or the lookup
// fails.
func LatestReference(
	ctx context.Context,
	lookup repositories.ReferenceLookup,
	identifier string,
) string {
	releases, err := lookup.GetReleases(ctx, identifier)
	if err != nil {
		logger.Debugf("Failed to list releases for %s: %v", identifier, err)
		return ""
	}
	if len(releases) > 0 {
		return releases[0]
	}

	tags, err := lookup.GetTags(ctx, identifier)
	if err != nil {
		logger.Debugf("Failed to list tags for %s: %v", identifier, err)
		return ""
	}
	if len(tags) > 0 {
		return tags[0]
	}
	return ""
}

// CachedLookup memoizes LatestReference per identifier for the duration of one discovery.
type CachedLookup struct {
	lookup repositories.ReferenceLookup
	cache  map[string]string
}

// NewCachedLookup wraps a reference lookup with a per-identifier cache.
func NewCachedLookup(lookup repositories.ReferenceLookup) *CachedLookup {
	return &CachedLookup{lookup: lookup, cache: make(map[string]string)}
}

// Latest returns the cached latest reference, resolving it on first use.
func (it *CachedLookup) Latest(ctx context.Context, identifier string) string {
	if latest, ok := it.cache[identifier]; ok {
		return latest
	}
	latest := LatestReference(ctx, it.lookup, identifier)
	it.cache[identifier] = latest
	return latest
}

// RepositoryIdentifier reduces a path such as "owner/repo/sub/dir" to "owner/repo".
// It returns "" when the path has fewer than two segments.
func RepositoryIdentifier(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" { //nolint:mnd // owner + repo
		return ""
	}
	return segments[0] + "/" + segments[1]
}
