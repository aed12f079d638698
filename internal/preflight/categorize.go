// Package preflight validates that the provider will accept reservation
// requests before any bulk mutation begins.
package preflight

import (
	"context"
	"errors"
	"strings"
)

// Category classifies why the provider is not ready. Classification is a
// best-effort match on the provider's error text; a miss degrades the
// diagnostic, not the run.
type Category string

const (
	CategoryNone        Category = ""
	CategoryQuota       Category = "quota"
	CategoryPermission  Category = "permission"
	CategoryUnsupported Category = "unsupported"
	CategoryZoneConfig  Category = "zone-config"
	CategoryTimeout     Category = "timeout"
	CategoryUnknown     Category = "unknown"
)

var patterns = []struct {
	category Category
	needles  []string
}{
	{CategoryQuota, []string{"quota", "limit exceeded", "resource_exhausted", "rate limit"}},
	{CategoryPermission, []string{"permission", "forbidden", "unauthorized", "access denied", "403"}},
	{CategoryUnsupported, []string{"not supported", "unsupported", "not available in", "invalid machine type", "accessnotconfigured"}},
	{CategoryZoneConfig, []string{"zone", "placement"}},
}

// Categorize maps a provider error onto a Category.
func Categorize(err error) Category {
	if err == nil {
		return CategoryNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		for _, needle := range p.needles {
			if strings.Contains(msg, needle) {
				return p.category
			}
		}
	}
	return CategoryUnknown
}
