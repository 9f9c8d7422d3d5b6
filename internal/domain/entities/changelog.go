package entities

import (
	"fmt"
	"strings"
)

const (
	unreleasedHeading = "## [Unreleased]"
	changedHeading    = "### Changed"
	releaseHeadPrefix = "## ["
	bulletPrefix      = "- "
)

// ChangelogEntries renders one Keep-a-Changelog bullet per update in batch order.
func ChangelogEntries(batch UpdateBatch) []string {
	entries := make([]string, 0, batch.Len())
	for _, update := range batch.Updates() {
		entries = append(entries, fmt.Sprintf(
			"%schanged the %s dependency `%s` from `%s` to `%s`",
			bulletPrefix, update.Ecosystem, update.Name, update.CurrentVersion, update.LatestVersion,
		))
	}
	return entries
}

// InsertChangelogEntries adds the entries under "### Changed" inside the "## [Unreleased]"
// section, creating the subsection when it is missing. The boolean result is false when the
// content has no Unreleased section or there is nothing to insert; the content is then
// returned as is.
func InsertChangelogEntries(content string, entries []string) (string, bool) {
	if len(entries) == 0 {
		return content, false
	}

	lines := strings.Split(content, "\n")
	section, ok := locateUnreleased(lines)
	if !ok {
		return content, false
	}

	var at int
	var block []string
	if section.changed >= 0 {
		at = section.lastBullet() + 1
		block = entries
	} else {
		at = section.start + 1
		block = append([]string{"", changedHeading, ""}, entries...)
	}

	result := make([]string, 0, len(lines)+len(block))
	result = append(result, lines[:at]...)
	result = append(result, block...)
	result = append(result, lines[at:]...)
	return strings.Join(result, "\n"), true
}

// unreleasedSection holds line indexes of the Unreleased block. end is exclusive.
type unreleasedSection struct {
	lines   []string
	start   int
	end     int
	changed int
}

func locateUnreleased(lines []string) (unreleasedSection, bool) {
	section := unreleasedSection{lines: lines, start: -1, end: len(lines), changed: -1}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case section.start < 0 && trimmed == unreleasedHeading:
			section.start = i
		case section.start >= 0 && strings.HasPrefix(trimmed, releaseHeadPrefix):
			section.end = i
			return section, true
		case section.start >= 0 && section.changed < 0 && trimmed == changedHeading:
			section.changed = i
		}
	}
	return section, section.start >= 0
}

// lastBullet returns the index of the last bullet in the Changed subsection, skipping blank
// lines between bullets and stopping at the first other content.
func (s unreleasedSection) lastBullet() int {
	last := s.changed
	for i := s.changed + 1; i < s.end; i++ {
		trimmed := strings.TrimSpace(s.lines[i])
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, bulletPrefix) {
			break
		}
		last = i
	}
	return last
}
