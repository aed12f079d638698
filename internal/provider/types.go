package provider

// Scope identifies the project and zones a reconciliation run operates on.
type Scope struct {
	Project string
	Region  string
	Zones   []string // zones to inventory; required for the GCE provider
}

// Instance is one compute instance as reported by the provider.
// Records are read-only after collection; only the binding result is
// recorded locally by the association stage.
type Instance struct {
	Name       string `json:"name"`
	ID         string `json:"id"`          // opaque resource reference (self link)
	SizeClass  string `json:"size_class"`  // machine type, e.g. "n2-standard-4"
	Zone       string `json:"zone"`        // empty when the instance has no zone placement
	Location   string `json:"location"`    // region
	OwnerScope string `json:"owner_scope"` // project
	BoundGroup string `json:"bound_group"` // reservation group the instance is bound to, empty if none
}

// Zoned reports whether the instance has a zone placement. Instances
// without one cannot be covered by zonal reservations.
func (i Instance) Zoned() bool {
	return i.Zone != ""
}

// Group is the named container scoping all reservations for one run.
type Group struct {
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Zones    []string `json:"zones,omitempty"`
}

// Reservation is one capacity reservation entry.
type Reservation struct {
	Name      string `json:"name"`
	SizeClass string `json:"size_class"`
	Zone      string `json:"zone"`
	Capacity  int64  `json:"capacity"`
}
