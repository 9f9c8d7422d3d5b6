// Package hosting holds the helpers shared by the code hosting adapters.
package hosting

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"
)

const (
	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
	retryMaxDelay = 5 * time.Second
)

// Retry runs op with exponential backoff while retryIf reports the error as transient.
// The last error is returned once the attempts are exhausted or ctx is done.
func Retry(ctx context.Context, name string, op func() error, retryIf func(error) bool) error {
	return retry.Do(
		op,
		retry.Attempts(retryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(retryDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.RetryIf(retryIf),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debugf("Retrying %s (attempt %d): %v", name, n+1, err)
		}),
		retry.Context(ctx),
	)
}

// SortVersionsDescending orders tags newest first. Valid semantic versions are compared as
// such, anything else falls back to a lexical comparison.
func SortVersionsDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		v1 := normalizeVersion(versions[i])
		v2 := normalizeVersion(versions[j])
		if semver.IsValid(v1) && semver.IsValid(v2) {
			return semver.Compare(v1, v2) > 0
		}
		return versions[i] > versions[j]
	})
}

// SplitIdentifier splits "owner/repo" into its two parts.
func SplitIdentifier(identifier string) (string, string, bool) {
	owner, name, found := strings.Cut(strings.Trim(identifier, "/"), "/")
	if !found || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

func normalizeVersion(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}
