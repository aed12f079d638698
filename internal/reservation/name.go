// Package reservation ensures the reservation group and its per-demand
// reservation entries exist.
package reservation

import (
	"fmt"
	"strings"
)

// ZoneLabel reduces a zone to the short label used in reservation names.
// Provider zones like "us-central1-a" become "a"; bare labels pass
// through unchanged.
func ZoneLabel(zone string) string {
	if idx := strings.LastIndex(zone, "-"); idx >= 0 {
		return zone[idx+1:]
	}
	return zone
}

// Name derives the reservation name for a (group, size class, zone)
// triple. The name is a pure function of its inputs: that is what makes
// creation idempotent and lookups deterministic without a persisted map.
func Name(group, sizeClass, zone string) string {
	return fmt.Sprintf("%s-%s-z%s", group, sanitize(sizeClass), ZoneLabel(zone))
}

// ProbeName derives the name for a disposable preflight probe. The suffix
// keeps it distinct from any real reservation while preserving the zone
// encoding the provider routes on.
func ProbeName(group, nonce, zone string) string {
	return fmt.Sprintf("%s-probe-%s-z%s", group, nonce, ZoneLabel(zone))
}

// sanitize lowercases a size class and strips characters that are not
// valid in resource names.
func sanitize(sizeClass string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(sizeClass) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
