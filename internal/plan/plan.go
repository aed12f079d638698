// Package plan renders the computed reconciliation plan and the final run
// report.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reservectl/reservectl/internal/demand"
	"github.com/reservectl/reservectl/internal/provider"
	"github.com/reservectl/reservectl/internal/reservation"
)

// PlannedReservation is one reservation the engine would create or keep.
type PlannedReservation struct {
	Name      string `json:"name"`
	SizeClass string `json:"size_class"`
	Zone      string `json:"zone"`
	Capacity  int    `json:"capacity"`
}

// Assignment maps one instance to its planned reservation.
type Assignment struct {
	Instance    string `json:"instance"`
	Reservation string `json:"reservation"`
}

// Plan is the full dry-run plan. It must match exactly what a non-dry-run
// invocation would attempt against unchanged provider state, so every
// slice is sorted and nothing in it is time dependent.
type Plan struct {
	Group        provider.Group       `json:"group"`
	Reservations []PlannedReservation `json:"reservations"`
	Assignments  []Assignment         `json:"assignments"`
	Unclassified int                  `json:"unclassified"`
}

// Build computes the plan from aggregated demand.
func Build(group provider.Group, demands []demand.Demand, instances []provider.Instance, unclassified int) *Plan {
	p := &Plan{Group: group, Unclassified: unclassified}

	for _, d := range demands {
		p.Reservations = append(p.Reservations, PlannedReservation{
			Name:      reservation.Name(group.Name, d.SizeClass, d.Zone),
			SizeClass: d.SizeClass,
			Zone:      d.Zone,
			Capacity:  d.Count,
		})
	}

	for _, inst := range instances {
		if !inst.Zoned() {
			continue
		}
		p.Assignments = append(p.Assignments, Assignment{
			Instance:    inst.Name,
			Reservation: reservation.Name(group.Name, inst.SizeClass, inst.Zone),
		})
	}
	sort.Slice(p.Assignments, func(i, j int) bool { return p.Assignments[i].Instance < p.Assignments[j].Instance })

	return p
}

// Render produces the human-readable plan, one line per reservation and
// per instance. Output is byte-identical across invocations for the same
// inventory.
func (p *Plan) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "group %s (location %s", p.Group.Name, p.Group.Location)
	if len(p.Group.Zones) > 0 {
		fmt.Fprintf(&b, ", zones %s", strings.Join(p.Group.Zones, ","))
	}
	b.WriteString(")\n")

	for _, r := range p.Reservations {
		fmt.Fprintf(&b, "reservation %s size=%s zone=%s capacity=%d\n", r.Name, r.SizeClass, r.Zone, r.Capacity)
	}
	for _, a := range p.Assignments {
		fmt.Fprintf(&b, "instance %s -> %s\n", a.Instance, a.Reservation)
	}
	if p.Unclassified > 0 {
		fmt.Fprintf(&b, "unclassified (no zone, not covered): %d\n", p.Unclassified)
	}
	return b.String()
}
