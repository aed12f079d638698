package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider implements Provider in memory for local development and
// testing. Zero value is not usable; use NewMockProvider.
type MockProvider struct {
	mu sync.Mutex

	Instances    []Instance
	Groups       map[string]Group
	Reservations map[string]Reservation // keyed by reservation name

	// Error injection. Keys are resource names; a present entry makes the
	// matching call fail with that error.
	CreateReservationErr map[string]error
	BindErr              map[string]error
	ListErr              error
	CapabilityErr        error
	EnsureGroupErr       error

	// Call counters.
	CreateCalls  int
	BindCalls    int
	CreatedSpecs []Reservation // successful creations, in create order
	DeleteCalls  []string      // reservation names, in delete order
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Groups:               make(map[string]Group),
		Reservations:         make(map[string]Reservation),
		CreateReservationErr: make(map[string]error),
		BindErr:              make(map[string]error),
	}
}

func (m *MockProvider) ListInstances(ctx context.Context, scope Scope) ([]Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]Instance, len(m.Instances))
	copy(out, m.Instances)
	return out, nil
}

func (m *MockProvider) InstanceBindings(ctx context.Context, scope Scope, names []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	bindings := make(map[string]string)
	for _, inst := range m.Instances {
		if wanted[inst.Name] && inst.BoundGroup != "" {
			bindings[inst.Name] = inst.BoundGroup
		}
	}
	return bindings, nil
}

func (m *MockProvider) EnsureGroup(ctx context.Context, group Group) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.EnsureGroupErr != nil {
		return false, m.EnsureGroupErr
	}
	if _, ok := m.Groups[group.Name]; ok {
		return false, nil
	}
	m.Groups[group.Name] = group
	return true, nil
}

func (m *MockProvider) ReservationExists(ctx context.Context, groupName, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.Reservations[name]
	return ok, nil
}

func (m *MockProvider) CreateReservation(ctx context.Context, groupName string, res Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if err, ok := m.CreateReservationErr[res.Name]; ok {
		return err
	}
	if _, ok := m.Reservations[res.Name]; ok {
		return fmt.Errorf("reservation %s already exists", res.Name)
	}
	m.Reservations[res.Name] = res
	m.CreatedSpecs = append(m.CreatedSpecs, res)
	return nil
}

func (m *MockProvider) DeleteReservation(ctx context.Context, groupName, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls = append(m.DeleteCalls, name)
	delete(m.Reservations, name)
	return nil
}

func (m *MockProvider) BindInstance(ctx context.Context, scope Scope, instanceName, groupName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BindCalls++
	if err, ok := m.BindErr[instanceName]; ok {
		return err
	}
	for i := range m.Instances {
		if m.Instances[i].Name == instanceName {
			m.Instances[i].BoundGroup = groupName
			return nil
		}
	}
	return fmt.Errorf("instance %s not found", instanceName)
}

func (m *MockProvider) CheckCapability(ctx context.Context, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.CapabilityErr
}
