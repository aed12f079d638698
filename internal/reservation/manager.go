package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/reservectl/reservectl/internal/demand"
	"github.com/reservectl/reservectl/internal/provider"
)

// DefaultWorkers bounds concurrent reservation creations.
const DefaultWorkers = 5

// Failure records one demand bucket that could not be provisioned.
type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of provisioning every demand bucket. Names maps
// each demand key to its reservation name; buckets that failed are absent,
// so a later association referencing them fails explicitly rather than
// silently.
type Result struct {
	Created  int
	Existing int
	Names    map[demand.Key]string
	Failures []Failure
}

// Manager idempotently ensures the reservation group and its entries.
type Manager struct {
	provider provider.Provider
	log      *logrus.Logger
	workers  int
}

// NewManager creates a reservation manager with the default worker bound.
func NewManager(p provider.Provider, log *logrus.Logger) *Manager {
	return &Manager{provider: p, log: log, workers: DefaultWorkers}
}

// EnsureGroup creates the reservation group if absent and reports whether
// it was created. An existing group is success; any other failure is fatal
// for the run, since no reservation can be created without its group.
func (m *Manager) EnsureGroup(ctx context.Context, group provider.Group) (bool, error) {
	created, err := m.provider.EnsureGroup(ctx, group)
	if err != nil {
		if provider.IsAlreadyExists(err) {
			m.log.WithField("group", group.Name).Info("reservation group already exists")
			return false, nil
		}
		return false, fmt.Errorf("failed to ensure reservation group %s: %w", group.Name, err)
	}
	if created {
		m.log.WithField("group", group.Name).Info("created reservation group")
	} else {
		m.log.WithField("group", group.Name).Info("reservation group already exists")
	}
	return created, nil
}

// Provision ensures one reservation per demand bucket. Each bucket is
// attempted independently; a failure is recorded and the remaining buckets
// still run. EnsureGroup must have succeeded before this is called.
func (m *Manager) Provision(ctx context.Context, groupName string, demands []demand.Demand) Result {
	res := Result{Names: make(map[demand.Key]string, len(demands))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, d := range demands {
		d := d
		name := Name(groupName, d.SizeClass, d.Zone)
		g.Go(func() error {
			exists, err := m.provider.ReservationExists(gctx, groupName, name)
			if err != nil {
				mu.Lock()
				res.Failures = append(res.Failures, Failure{Name: name, Reason: err.Error()})
				mu.Unlock()
				return nil
			}
			if exists {
				m.log.WithField("reservation", name).Debug("reservation already exists")
				mu.Lock()
				res.Existing++
				res.Names[d.Key()] = name
				mu.Unlock()
				return nil
			}

			err = m.provider.CreateReservation(gctx, groupName, provider.Reservation{
				Name:      name,
				SizeClass: d.SizeClass,
				Zone:      d.Zone,
				Capacity:  int64(d.Count),
			})
			if err != nil {
				if provider.IsAlreadyExists(err) {
					mu.Lock()
					res.Existing++
					res.Names[d.Key()] = name
					mu.Unlock()
					return nil
				}
				m.log.WithFields(logrus.Fields{
					"reservation": name,
					"error":       err,
				}).Warn("reservation creation failed")
				mu.Lock()
				res.Failures = append(res.Failures, Failure{Name: name, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			m.log.WithFields(logrus.Fields{
				"reservation": name,
				"capacity":    d.Count,
			}).Info("created reservation")
			mu.Lock()
			res.Created++
			res.Names[d.Key()] = name
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; failures are accumulated per bucket.
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Name < res.Failures[j].Name })
	return res
}
