// Package manifest holds the scoped text substitution shared by every ecosystem patcher.
package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rios0rios0/depflow/internal/domain/repositories"
)

// VersionGroup is the name of the capture group Substitute rewrites.
const VersionGroup = "version"

// Substitute rewrites every match of the patterns in the file at path, replacing only the
// text of each pattern's "version" capture group with latest. Unrelated bytes are left
// untouched. It returns the number of replacements, or repositories.ErrPatternNotFound when
// no pattern matched. The file is not written in that case.
func Substitute(path, latest string, patterns ...*regexp.Regexp) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %q: %w", path, err)
	}

	updated, count, err := SubstituteString(string(content), latest, patterns...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	if writeErr := os.WriteFile(path, []byte(updated), info.Mode().Perm()); writeErr != nil {
		return 0, fmt.Errorf("failed to write %q: %w", path, writeErr)
	}
	return count, nil
}

// SubstituteString is the in-memory form of Substitute. Patterns are applied in order, each
// on the output of the previous one.
func SubstituteString(content, latest string, patterns ...*regexp.Regexp) (string, int, error) {
	total := 0
	for _, pattern := range patterns {
		group := pattern.SubexpIndex(VersionGroup)
		if group < 0 {
			return "", 0, fmt.Errorf("pattern %q has no %q group", pattern, VersionGroup)
		}

		var count int
		content, count = replaceGroup(content, pattern, group, latest)
		total += count
	}

	if total == 0 {
		return "", 0, repositories.ErrPatternNotFound
	}
	return content, total, nil
}

func replaceGroup(content string, pattern *regexp.Regexp, group int, latest string) (string, int) {
	matches := pattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, 0
	}

	var sb strings.Builder
	sb.Grow(len(content))
	cursor, count := 0, 0
	for _, match := range matches {
		start, end := match[2*group], match[2*group+1]
		if start < 0 {
			continue
		}
		sb.WriteString(content[cursor:start])
		sb.WriteString(latest)
		cursor = end
		count++
	}
	sb.WriteString(content[cursor:])
	return sb.String(), count
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
