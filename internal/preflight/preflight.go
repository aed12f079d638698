package preflight

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reservectl/reservectl/internal/demand"
	"github.com/reservectl/reservectl/internal/provider"
	"github.com/reservectl/reservectl/internal/reservation"
)

// Result is the preflight verdict. NotReady results carry a categorized
// reason; the engine surfaces them as warnings and may still proceed,
// expecting similar failures downstream.
type Result struct {
	Ready    bool     `json:"ready"`
	Category Category `json:"category,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Validator checks provider prerequisites and runs a disposable probe
// reservation. The probe is fully synchronous: it completes, success or
// failure, before bulk provisioning starts.
type Validator struct {
	provider provider.Provider
	log      *logrus.Logger

	// nonce overrides the random probe suffix in tests.
	nonce func() string
}

// NewValidator creates a preflight validator.
func NewValidator(p provider.Provider, log *logrus.Logger) *Validator {
	return &Validator{
		provider: p,
		log:      log,
		nonce:    func() string { return uuid.NewString()[:8] },
	}
}

// Validate runs the capability check and the synthetic probe. The probe
// uses the smallest demand size class at capacity 1 in the first demand
// zone, and is deleted on the way out even when creation failed partway.
func (v *Validator) Validate(ctx context.Context, scope provider.Scope, groupName string, demands []demand.Demand) Result {
	if err := v.provider.CheckCapability(ctx, scope); err != nil {
		if errors.Is(err, provider.ErrNotRegistered) {
			return Result{Ready: false, Category: CategoryUnsupported, Reason: err.Error()}
		}
		return Result{Ready: false, Category: Categorize(err), Reason: err.Error()}
	}

	sizeClass, zone, ok := probeTarget(demands)
	if !ok {
		// Nothing zonal to provision, so nothing to probe.
		v.log.Debug("no zonal demand; skipping probe reservation")
		return Result{Ready: true}
	}

	name := reservation.ProbeName(groupName, v.nonce(), zone)
	v.log.WithField("probe", name).Info("creating preflight probe reservation")

	err := v.provider.CreateReservation(ctx, groupName, provider.Reservation{
		Name:      name,
		SizeClass: sizeClass,
		Zone:      zone,
		Capacity:  1,
	})

	// Cleanup runs regardless of the create outcome: a failed create may
	// still have left a partial reservation behind.
	if delErr := v.provider.DeleteReservation(ctx, groupName, name); delErr != nil {
		v.log.WithFields(logrus.Fields{
			"probe": name,
			"error": delErr,
		}).Warn("failed to delete probe reservation")
	}

	if err != nil {
		return Result{Ready: false, Category: Categorize(err), Reason: err.Error()}
	}
	return Result{Ready: true}
}

// probeTarget picks the smallest size class across demands and the first
// demand zone.
func probeTarget(demands []demand.Demand) (sizeClass, zone string, ok bool) {
	if len(demands) == 0 {
		return "", "", false
	}
	classes := make([]string, 0, len(demands))
	for _, d := range demands {
		classes = append(classes, d.SizeClass)
	}
	sort.Strings(classes)
	return classes[0], demands[0].Zone, true
}
