// Package engine drives one reservation reconciliation run:
// collect -> aggregate -> preflight -> group -> reservations -> bindings.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reservectl/reservectl/internal/binder"
	"github.com/reservectl/reservectl/internal/demand"
	"github.com/reservectl/reservectl/internal/inventory"
	"github.com/reservectl/reservectl/internal/plan"
	"github.com/reservectl/reservectl/internal/preflight"
	"github.com/reservectl/reservectl/internal/provider"
	"github.com/reservectl/reservectl/internal/reservation"
)

// Options configures one run.
type Options struct {
	Scope        provider.Scope
	GroupName    string
	BindInterval time.Duration // pacing between bind mutations
}

// Engine wires the reconciliation stages over one provider.
type Engine struct {
	provider  provider.Provider
	log       *logrus.Logger
	collector *inventory.Collector
	validator *preflight.Validator
	manager   *reservation.Manager
}

// New creates an engine.
func New(p provider.Provider, log *logrus.Logger) *Engine {
	return &Engine{
		provider:  p,
		log:       log,
		collector: inventory.NewCollector(p, log),
		validator: preflight.NewValidator(p, log),
		manager:   reservation.NewManager(p, log),
	}
}

// group builds the group descriptor: zones are those that actually carry
// demand, sorted by the aggregator's ordering.
func group(opts Options, demands []demand.Demand) provider.Group {
	seen := make(map[string]bool)
	var zones []string
	for _, d := range demands {
		if !seen[d.Zone] {
			seen[d.Zone] = true
			zones = append(zones, d.Zone)
		}
	}
	sort.Strings(zones)
	return provider.Group{
		Name:     opts.GroupName,
		Location: opts.Scope.Region,
		Zones:    zones,
	}
}

// Plan computes the dry-run plan: inventory and aggregation only, no
// preflight probe and no mutation of any kind.
func (e *Engine) Plan(ctx context.Context, opts Options) (*plan.Plan, error) {
	instances, err := e.collector.Collect(ctx, opts.Scope)
	if err != nil {
		return nil, fatal("inventory", err)
	}
	demands, unclassified := demand.Aggregate(instances)
	return plan.Build(group(opts, demands), demands, instances, unclassified), nil
}

// Apply runs the full reconciliation. Preflight NotReady results are
// surfaced in the report as warnings before bulk operations proceed; only
// fatal preconditions return an error.
func (e *Engine) Apply(ctx context.Context, opts Options) (*plan.Report, error) {
	instances, err := e.collector.Collect(ctx, opts.Scope)
	if err != nil {
		return nil, fatal("inventory", err)
	}
	demands, unclassified := demand.Aggregate(instances)
	grp := group(opts, demands)

	report := &plan.Report{Group: grp.Name, Unclassified: unclassified}

	report.Preflight = e.validator.Validate(ctx, opts.Scope, grp.Name, demands)
	if !report.Preflight.Ready {
		e.log.WithFields(logrus.Fields{
			"category": report.Preflight.Category,
			"reason":   report.Preflight.Reason,
		}).Warn("preflight not ready; continuing, downstream operations may fail the same way")
	}

	// Hard ordering: the group must exist before any reservation, and
	// reservations before any association referencing them.
	created, err := e.manager.EnsureGroup(ctx, grp)
	if err != nil {
		return report, fatal("reservation group", err)
	}
	report.GroupCreated = created

	prov := e.manager.Provision(ctx, grp.Name, demands)
	report.ReservationsCreated = prov.Created
	report.ReservationsExisting = prov.Existing
	report.ReservationFailures = prov.Failures

	b := binder.NewBinder(e.provider, e.log, opts.BindInterval)
	bind := b.Associate(ctx, opts.Scope, grp.Name, instances, prov.Names)
	report.Bound = bind.Bound
	report.Skipped = bind.Skipped
	report.Failed = bind.Failed
	report.BindFailures = bind.Failures

	e.log.WithFields(logrus.Fields{
		"created": report.ReservationsCreated,
		"bound":   report.Bound,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}).Info("reconciliation complete")
	return report, nil
}
