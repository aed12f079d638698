package provider

import (
	"context"
	"errors"
	"strings"
)

// ErrNotRegistered indicates the capacity reservation capability is not
// enabled for the account.
var ErrNotRegistered = errors.New("capacity reservation capability not registered")

// Provider defines the cloud operations the reconciliation engine depends
// on. Implementations fold "already exists" into success on create calls
// and "not found" into success on delete calls.
type Provider interface {
	// ListInstances returns every compute instance in the scope,
	// including any existing reservation-group binding.
	ListInstances(ctx context.Context, scope Scope) ([]Instance, error)

	// InstanceBindings returns the current group binding for each named
	// instance in one batched read. Instances with no binding are absent
	// from the map.
	InstanceBindings(ctx context.Context, scope Scope, names []string) (map[string]string, error)

	// EnsureGroup creates the reservation group if it does not exist.
	// Returns created=false when the group was already present.
	EnsureGroup(ctx context.Context, group Group) (created bool, err error)

	// ReservationExists reports whether a reservation with the exact name
	// exists in the group.
	ReservationExists(ctx context.Context, groupName, name string) (bool, error)

	// CreateReservation creates one reservation entry in the group.
	CreateReservation(ctx context.Context, groupName string, res Reservation) error

	// DeleteReservation removes a reservation. Used only for preflight
	// probe cleanup; deleting a missing reservation is not an error.
	DeleteReservation(ctx context.Context, groupName, name string) error

	// BindInstance associates an instance with the reservation group.
	BindInstance(ctx context.Context, scope Scope, instanceName, groupName string) error

	// CheckCapability verifies the account can use capacity reservations
	// in the scope. Returns ErrNotRegistered when the capability is off.
	CheckCapability(ctx context.Context, scope Scope) error
}

// IsAlreadyExists reports whether a provider error means the resource was
// already present. Best-effort string match on the provider error text.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "alreadyexists") || strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}

// IsNotFound reports whether a provider error means the resource does not
// exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "notfound") || strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
