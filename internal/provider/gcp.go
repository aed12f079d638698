package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	compute "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/compute/apiv1/computepb"
	retry "github.com/avast/retry-go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/proto"
)

// groupLabel marks an instance as bound to a reservation group.
const groupLabel = "reservation-group"

// GCEProvider implements Provider against Google Compute Engine.
//
// GCE has no first-class reservation-group resource, so the group is a
// naming convention: every reservation belonging to group G is named with
// the "G-" prefix and placed in a zone of the group's region. Instance
// binding is recorded as the "reservation-group" instance label; placement
// then follows the group's open reservations (SpecificReservationRequired
// is false) by machine-type and zone matching.
type GCEProvider struct {
	project string
	region  string
}

// GCEConfig holds configuration for the GCE provider.
type GCEConfig struct {
	Project string
	Region  string // e.g. "us-central1"
}

// NewGCEProvider creates a new GCE provider.
func NewGCEProvider(cfg GCEConfig) *GCEProvider {
	return &GCEProvider{
		project: cfg.Project,
		region:  cfg.Region,
	}
}

// withRetry wraps a provider mutation with a short context-bound backoff.
// Idempotence errors are not retried; the callers fold them instead.
func withRetry(ctx context.Context, op func() error) error {
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return !IsAlreadyExists(err) && !IsNotFound(err)
		}),
		retry.LastErrorOnly(true),
	)
}

// ListInstances returns every compute instance in the scope's zones.
func (p *GCEProvider) ListInstances(ctx context.Context, scope Scope) ([]Instance, error) {
	client, err := compute.NewInstancesRESTClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute client: %w", err)
	}
	defer client.Close()

	var instances []Instance
	for _, zone := range scope.Zones {
		it := client.List(ctx, &computepb.ListInstancesRequest{
			Project: scope.Project,
			Zone:    zone,
		})
		for {
			inst, err := it.Next()
			if iterDone(err) {
				break
			}
			if err != nil {
				// A failed query must not pass off a partial listing as
				// the full inventory.
				return nil, fmt.Errorf("failed to list instances in %s: %w", zone, err)
			}
			instances = append(instances, p.toInstance(inst, scope))
		}
	}
	return instances, nil
}

// InstanceBindings returns the current group label for each named instance
// with one list call per zone instead of a get per instance.
func (p *GCEProvider) InstanceBindings(ctx context.Context, scope Scope, names []string) (map[string]string, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	all, err := p.ListInstances(ctx, scope)
	if err != nil {
		return nil, err
	}

	bindings := make(map[string]string)
	for _, inst := range all {
		if wanted[inst.Name] && inst.BoundGroup != "" {
			bindings[inst.Name] = inst.BoundGroup
		}
	}
	return bindings, nil
}

// EnsureGroup materializes the group naming convention. The group "exists"
// once any reservation carries its name prefix; otherwise the call
// validates that each requested zone belongs to the group's location.
func (p *GCEProvider) EnsureGroup(ctx context.Context, group Group) (bool, error) {
	for _, zone := range group.Zones {
		if !strings.HasPrefix(zone, group.Location) {
			return false, fmt.Errorf("zone %s is not in location %s", zone, group.Location)
		}
	}

	client, err := compute.NewReservationsRESTClient(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create reservations client: %w", err)
	}
	defer client.Close()

	zones := group.Zones
	if len(zones) == 0 {
		zones = []string{group.Location + "-a"}
	}
	for _, zone := range zones {
		it := client.List(ctx, &computepb.ListReservationsRequest{
			Project: p.project,
			Zone:    zone,
			Filter:  proto.String(fmt.Sprintf("name:%s-*", group.Name)),
		})
		_, err := it.Next()
		if err == nil {
			return false, nil // group already materialized
		}
		if !iterDone(err) {
			// Only an exhausted iterator proves the group is absent; a
			// failed list leaves the group state unknown and is fatal.
			return false, fmt.Errorf("failed to list reservations in %s: %w", zone, err)
		}
	}
	return true, nil
}

// ReservationExists reports whether the named reservation exists.
func (p *GCEProvider) ReservationExists(ctx context.Context, groupName, name string) (bool, error) {
	client, err := compute.NewReservationsRESTClient(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create reservations client: %w", err)
	}
	defer client.Close()

	zone, err := p.zoneOf(name)
	if err != nil {
		return false, err
	}

	_, err = client.Get(ctx, &computepb.GetReservationRequest{
		Project:     p.project,
		Zone:        zone,
		Reservation: name,
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get reservation %s: %w", name, err)
	}
	return true, nil
}

// CreateReservation creates one open reservation entry in the group.
func (p *GCEProvider) CreateReservation(ctx context.Context, groupName string, res Reservation) error {
	client, err := compute.NewReservationsRESTClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create reservations client: %w", err)
	}
	defer client.Close()

	zone, err := p.zoneOf(res.Name)
	if err != nil {
		return err
	}

	reservation := &computepb.Reservation{
		Name:                        proto.String(res.Name),
		SpecificReservationRequired: proto.Bool(false),
		SpecificReservation: &computepb.AllocationSpecificSKUReservation{
			Count: proto.Int64(res.Capacity),
			InstanceProperties: &computepb.AllocationSpecificSKUAllocationReservedInstanceProperties{
				MachineType: proto.String(res.SizeClass),
			},
		},
	}

	return withRetry(ctx, func() error {
		op, err := client.Insert(ctx, &computepb.InsertReservationRequest{
			Project:             p.project,
			Zone:                zone,
			ReservationResource: reservation,
		})
		if err != nil {
			if IsAlreadyExists(err) {
				return nil
			}
			return fmt.Errorf("failed to create reservation %s: %w", res.Name, err)
		}
		if err := op.Wait(ctx); err != nil {
			return fmt.Errorf("failed waiting for reservation %s: %w", res.Name, err)
		}
		return nil
	})
}

// DeleteReservation removes a reservation. A missing reservation is
// treated as already deleted.
func (p *GCEProvider) DeleteReservation(ctx context.Context, groupName, name string) error {
	client, err := compute.NewReservationsRESTClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create reservations client: %w", err)
	}
	defer client.Close()

	zone, err := p.zoneOf(name)
	if err != nil {
		return err
	}

	op, err := client.Delete(ctx, &computepb.DeleteReservationRequest{
		Project:     p.project,
		Zone:        zone,
		Reservation: name,
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete reservation %s: %w", name, err)
	}
	if err := op.Wait(ctx); err != nil {
		return fmt.Errorf("failed waiting for reservation deletion: %w", err)
	}
	return nil
}

// BindInstance records the group binding as an instance label.
func (p *GCEProvider) BindInstance(ctx context.Context, scope Scope, instanceName, groupName string) error {
	client, err := compute.NewInstancesRESTClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create compute client: %w", err)
	}
	defer client.Close()

	zone, err := p.findInstanceZone(ctx, client, scope, instanceName)
	if err != nil {
		return err
	}

	return withRetry(ctx, func() error {
		// SetLabels needs the current fingerprint, so read-modify-write.
		inst, err := client.Get(ctx, &computepb.GetInstanceRequest{
			Project:  scope.Project,
			Zone:     zone,
			Instance: instanceName,
		})
		if err != nil {
			return fmt.Errorf("failed to get instance %s: %w", instanceName, err)
		}

		labels := make(map[string]string, len(inst.GetLabels())+1)
		for k, v := range inst.GetLabels() {
			labels[k] = v
		}
		labels[groupLabel] = groupName

		op, err := client.SetLabels(ctx, &computepb.SetLabelsInstanceRequest{
			Project:  scope.Project,
			Zone:     zone,
			Instance: instanceName,
			InstancesSetLabelsRequestResource: &computepb.InstancesSetLabelsRequest{
				LabelFingerprint: proto.String(inst.GetLabelFingerprint()),
				Labels:           labels,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to bind instance %s: %w", instanceName, err)
		}
		if err := op.Wait(ctx); err != nil {
			return fmt.Errorf("failed waiting for instance binding: %w", err)
		}
		return nil
	})
}

// CheckCapability issues a cheap reservations list to verify the API is
// enabled and the caller may read reservations in the scope.
func (p *GCEProvider) CheckCapability(ctx context.Context, scope Scope) error {
	client, err := compute.NewReservationsRESTClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create reservations client: %w", err)
	}
	defer client.Close()

	zone := p.region + "-a"
	if len(scope.Zones) > 0 {
		zone = scope.Zones[0]
	}

	it := client.List(ctx, &computepb.ListReservationsRequest{
		Project:    p.project,
		Zone:       zone,
		MaxResults: proto.Uint32(1),
	})
	_, err = it.Next()
	if err != nil && iterDone(err) {
		return nil
	}
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "accessnotconfigured") || strings.Contains(msg, "has not been used") {
			return ErrNotRegistered
		}
		return fmt.Errorf("capability check failed: %w", err)
	}
	return nil
}

// zoneOf recovers the reservation's zone from its derived name. Names end
// in "-z<label>" where label is the zone suffix within the region, e.g.
// "prod-capres-n2-standard-4-za" lives in "<region>-a".
func (p *GCEProvider) zoneOf(name string) (string, error) {
	idx := strings.LastIndex(name, "-z")
	if idx < 0 || idx+2 >= len(name) {
		return "", fmt.Errorf("reservation name %s has no zone suffix", name)
	}
	return p.region + "-" + name[idx+2:], nil
}

// findInstanceZone locates the zone an instance lives in within the scope.
func (p *GCEProvider) findInstanceZone(ctx context.Context, client *compute.InstancesClient, scope Scope, name string) (string, error) {
	for _, zone := range scope.Zones {
		_, err := client.Get(ctx, &computepb.GetInstanceRequest{
			Project:  scope.Project,
			Zone:     zone,
			Instance: name,
		})
		if err == nil {
			return zone, nil
		}
		if !IsNotFound(err) {
			return "", fmt.Errorf("failed to look up instance %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("instance %s not found in scope zones", name)
}

// toInstance converts a GCE instance to the provider-neutral record.
func (p *GCEProvider) toInstance(inst *computepb.Instance, scope Scope) Instance {
	return Instance{
		Name:       inst.GetName(),
		ID:         strconv.FormatUint(inst.GetId(), 10),
		SizeClass:  lastPathSegment(inst.GetMachineType()),
		Zone:       lastPathSegment(inst.GetZone()),
		Location:   scope.Region,
		OwnerScope: scope.Project,
		BoundGroup: inst.GetLabels()[groupLabel],
	}
}

// lastPathSegment trims a GCE resource URL down to its final name part.
func lastPathSegment(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

// iterDone reports whether an iterator error is normal exhaustion rather
// than a query failure.
func iterDone(err error) bool {
	return errors.Is(err, iterator.Done)
}
