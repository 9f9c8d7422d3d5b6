package entities

import (
	"strconv"
	"strings"
)

const (
	majorIndex = 0
	minorIndex = 1
	patchIndex = 2
)

// ClassifyUpdate compares two version strings and returns the magnitude of the bump from
// current to latest. It never fails: equal versions, downgrades and unparsable input all
// degrade to UpdateTypeUnknown.
//
// A single leading non-digit character (e.g. "v") is stripped from each side, the rest is
// split on "." into non-negative integers, and the shorter list is right-padded with zeros.
func ClassifyUpdate(current, latest string) UpdateType {
	currentParts, ok := parseVersionComponents(current)
	if !ok {
		return UpdateTypeUnknown
	}
	latestParts, ok := parseVersionComponents(latest)
	if !ok {
		return UpdateTypeUnknown
	}

	size := max(len(currentParts), len(latestParts))
	currentParts = padComponents(currentParts, size)
	latestParts = padComponents(latestParts, size)

	switch {
	case latestParts[majorIndex] > currentParts[majorIndex]:
		return UpdateTypeMajor
	case size > minorIndex && latestParts[minorIndex] > currentParts[minorIndex]:
		return UpdateTypeMinor
	case size > patchIndex && latestParts[patchIndex] > currentParts[patchIndex]:
		return UpdateTypePatch
	default:
		return UpdateTypeUnknown
	}
}

func parseVersionComponents(raw string) ([]uint64, bool) {
	if raw != "" && (raw[0] < '0' || raw[0] > '9') {
		raw = raw[1:]
	}
	if raw == "" {
		return nil, false
	}

	fields := strings.Split(raw, ".")
	parts := make([]uint64, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, false
		}
		parts = append(parts, value)
	}
	return parts, true
}

func padComponents(parts []uint64, size int) []uint64 {
	for len(parts) < size {
		parts = append(parts, 0)
	}
	return parts
}
