// Package binder associates compute instances with their reservation
// group, one instance at a time, with per-instance error isolation.
package binder

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/reservectl/reservectl/internal/demand"
	"github.com/reservectl/reservectl/internal/provider"
)

// DefaultInterval paces bind mutations to avoid correlated provider
// throttling failures.
const DefaultInterval = 2 * time.Second

// BindState is the outcome for one instance.
type BindState string

const (
	StateBound         BindState = "bound"
	StateSkipped       BindState = "skipped-already-bound"
	StateFailed        BindState = "failed"
	StateNoReservation BindState = "no-reservation"
)

// Failure records one instance that could not be bound.
type Failure struct {
	Instance string    `json:"instance"`
	State    BindState `json:"state"`
	Reason   string    `json:"reason"`
}

// Result aggregates the association outcome for the whole batch.
type Result struct {
	Bound    int       `json:"bound"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Binder binds instances to the reservation group. It reads the
// provisioner's demand-key map, never writes it.
type Binder struct {
	provider provider.Provider
	log      *logrus.Logger
	limiter  *rate.Limiter
}

// NewBinder creates a binder pacing mutations at one per interval.
func NewBinder(p provider.Provider, log *logrus.Logger, interval time.Duration) *Binder {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Binder{
		provider: p,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Associate binds every zoned instance whose demand key has a provisioned
// reservation. Instances already bound to the group are counted as
// skipped without a mutation call; no instance failure aborts the batch.
func (b *Binder) Associate(ctx context.Context, scope provider.Scope, groupName string, instances []provider.Instance, names map[demand.Key]string) Result {
	var res Result

	targets := make([]provider.Instance, 0, len(instances))
	targetNames := make([]string, 0, len(instances))
	for _, inst := range instances {
		if !inst.Zoned() {
			continue
		}
		targets = append(targets, inst)
		targetNames = append(targetNames, inst.Name)
	}

	// One batched read of current bindings instead of a lookup per
	// instance. On failure fall back to the bindings recorded at
	// collection time.
	bindings, err := b.provider.InstanceBindings(ctx, scope, targetNames)
	if err != nil {
		b.log.WithField("error", err).Warn("batched binding lookup failed; using collected bindings")
		bindings = make(map[string]string, len(targets))
		for _, inst := range targets {
			if inst.BoundGroup != "" {
				bindings[inst.Name] = inst.BoundGroup
			}
		}
	}

	for _, inst := range targets {
		resName, ok := names[demand.KeyOf(inst)]
		if !ok {
			b.log.WithFields(logrus.Fields{
				"instance": inst.Name,
				"size":     inst.SizeClass,
				"zone":     inst.Zone,
			}).Warn("no reservation provisioned for instance")
			res.Failed++
			res.Failures = append(res.Failures, Failure{
				Instance: inst.Name,
				State:    StateNoReservation,
				Reason:   "no reservation provisioned for demand key",
			})
			continue
		}

		if bindings[inst.Name] == groupName {
			b.log.WithField("instance", inst.Name).Debug("instance already bound")
			res.Skipped++
			continue
		}

		if err := b.limiter.Wait(ctx); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{
				Instance: inst.Name,
				State:    StateFailed,
				Reason:   err.Error(),
			})
			continue
		}

		if err := b.provider.BindInstance(ctx, scope, inst.Name, groupName); err != nil {
			b.log.WithFields(logrus.Fields{
				"instance": inst.Name,
				"error":    err,
			}).Warn("binding failed")
			res.Failed++
			res.Failures = append(res.Failures, Failure{
				Instance: inst.Name,
				State:    StateFailed,
				Reason:   err.Error(),
			})
			continue
		}

		b.log.WithFields(logrus.Fields{
			"instance":    inst.Name,
			"reservation": resName,
			"group":       groupName,
		}).Info("bound instance")
		res.Bound++
	}

	return res
}
