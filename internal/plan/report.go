package plan

import (
	"fmt"
	"strings"

	"github.com/reservectl/reservectl/internal/binder"
	"github.com/reservectl/reservectl/internal/preflight"
	"github.com/reservectl/reservectl/internal/reservation"
)

// Report summarizes a full apply run. Partial per-item failure still
// counts as an overall success; only fatal preconditions fail the run.
type Report struct {
	Group        string           `json:"group"`
	Preflight    preflight.Result `json:"preflight"`
	GroupCreated bool             `json:"group_created"`

	ReservationsCreated  int                   `json:"reservations_created"`
	ReservationsExisting int                   `json:"reservations_existing"`
	ReservationFailures  []reservation.Failure `json:"reservation_failures,omitempty"`

	Bound        int              `json:"bound"`
	Skipped      int              `json:"skipped"`
	Failed       int              `json:"failed"`
	BindFailures []binder.Failure `json:"bind_failures,omitempty"`

	Unclassified int `json:"unclassified"`
}

// Render produces the human-readable run summary.
func (r *Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "group %s", r.Group)
	if r.GroupCreated {
		b.WriteString(" (created)")
	}
	b.WriteString("\n")

	if !r.Preflight.Ready {
		fmt.Fprintf(&b, "preflight: not ready (%s): %s\n", r.Preflight.Category, r.Preflight.Reason)
	}

	fmt.Fprintf(&b, "reservations: %d created, %d existing, %d failed\n",
		r.ReservationsCreated, r.ReservationsExisting, len(r.ReservationFailures))
	for _, f := range r.ReservationFailures {
		fmt.Fprintf(&b, "  failed %s: %s\n", f.Name, f.Reason)
	}

	fmt.Fprintf(&b, "bindings: %d bound, %d skipped, %d failed\n", r.Bound, r.Skipped, r.Failed)
	for _, f := range r.BindFailures {
		fmt.Fprintf(&b, "  %s %s: %s\n", f.State, f.Instance, f.Reason)
	}

	if r.Unclassified > 0 {
		fmt.Fprintf(&b, "unclassified (no zone, not covered): %d\n", r.Unclassified)
	}
	return b.String()
}
