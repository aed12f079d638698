// Package inventory fetches the authoritative compute instance list for a
// reconciliation run.
package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/reservectl/reservectl/internal/provider"
)

// CollectionError wraps an inventory failure. The engine treats it as
// fatal: no reconciliation can proceed without authoritative inventory.
type CollectionError struct {
	Err error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("inventory collection failed: %v", e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Collector reads compute instances from the provider. Read-only.
type Collector struct {
	provider provider.Provider
	log      *logrus.Logger
}

// NewCollector creates a new inventory collector.
func NewCollector(p provider.Provider, log *logrus.Logger) *Collector {
	return &Collector{provider: p, log: log}
}

// Collect returns every instance in the scope, including existing
// reservation bindings. Malformed records (missing name or size class)
// are a collection failure, not a per-item one: they mean the query
// result cannot be trusted.
func (c *Collector) Collect(ctx context.Context, scope provider.Scope) ([]provider.Instance, error) {
	instances, err := c.provider.ListInstances(ctx, scope)
	if err != nil {
		return nil, &CollectionError{Err: err}
	}

	for _, inst := range instances {
		if inst.Name == "" || inst.SizeClass == "" {
			return nil, &CollectionError{Err: fmt.Errorf("malformed instance record %q (size class %q)", inst.Name, inst.SizeClass)}
		}
	}

	c.log.WithFields(logrus.Fields{
		"project":   scope.Project,
		"instances": len(instances),
	}).Info("collected inventory")
	return instances, nil
}
