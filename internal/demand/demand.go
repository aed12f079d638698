// Package demand groups compute instances into reservation demand buckets.
package demand

import (
	"sort"

	"github.com/reservectl/reservectl/internal/provider"
)

// Key identifies one demand bucket.
type Key struct {
	SizeClass string
	Zone      string
}

// Demand is the reservation capacity required for one (size class, zone)
// pair. Computed fresh each run, never persisted.
type Demand struct {
	SizeClass string `json:"size_class"`
	Zone      string `json:"zone"`
	Count     int    `json:"count"`
}

// Key returns the bucket key for this demand.
func (d Demand) Key() Key {
	return Key{SizeClass: d.SizeClass, Zone: d.Zone}
}

// KeyOf returns the demand bucket key an instance belongs to.
func KeyOf(inst provider.Instance) Key {
	return Key{SizeClass: inst.SizeClass, Zone: inst.Zone}
}

// Aggregate buckets instances by exact (size class, zone) pair. Instances
// without a zone are excluded from every bucket and returned as the
// unclassified count: reservations are zone scoped, so there is nothing to
// provision for them. The result is sorted by size class then zone so that
// repeated runs over the same inventory produce identical output.
func Aggregate(instances []provider.Instance) ([]Demand, int) {
	counts := make(map[Key]int)
	unclassified := 0
	for _, inst := range instances {
		if !inst.Zoned() {
			unclassified++
			continue
		}
		counts[KeyOf(inst)]++
	}

	demands := make([]Demand, 0, len(counts))
	for key, count := range counts {
		demands = append(demands, Demand{
			SizeClass: key.SizeClass,
			Zone:      key.Zone,
			Count:     count,
		})
	}
	sort.Slice(demands, func(i, j int) bool {
		if demands[i].SizeClass != demands[j].SizeClass {
			return demands[i].SizeClass < demands[j].SizeClass
		}
		return demands[i].Zone < demands[j].Zone
	})
	return demands, unclassified
}
