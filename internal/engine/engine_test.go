package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reservectl/reservectl/internal/provider"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testOpts() Options {
	return Options{
		Scope: provider.Scope{
			Project: "test-project",
			Region:  "us-central1",
			Zones:   []string{"us-central1-a", "us-central1-b"},
		},
		GroupName:    "capres-test",
		BindInterval: time.Millisecond,
	}
}

// 3 instances of one size in zone a, 2 of another in zone b, 1 without a
// zone.
func seedFleet(m *provider.MockProvider) {
	m.Instances = []provider.Instance{
		{Name: "vm-1", SizeClass: "n2-standard-4", Zone: "us-central1-a"},
		{Name: "vm-2", SizeClass: "n2-standard-4", Zone: "us-central1-a"},
		{Name: "vm-3", SizeClass: "n2-standard-4", Zone: "us-central1-a"},
		{Name: "vm-4", SizeClass: "e2-standard-2", Zone: "us-central1-b"},
		{Name: "vm-5", SizeClass: "e2-standard-2", Zone: "us-central1-b"},
		{Name: "vm-6", SizeClass: "e2-standard-2", Zone: ""},
	}
}

func TestApplyFullRun(t *testing.T) {
	m := provider.NewMockProvider()
	seedFleet(m)
	e := New(m, testLogger())

	report, err := e.Apply(context.Background(), testOpts())
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !report.Preflight.Ready {
		t.Errorf("expected preflight ready, got %+v", report.Preflight)
	}
	if !report.GroupCreated {
		t.Errorf("expected group creation on first run")
	}
	if report.ReservationsCreated != 2 {
		t.Errorf("expected 2 reservations created, got %d", report.ReservationsCreated)
	}
	if report.Bound != 5 || report.Skipped != 0 || report.Failed != 0 {
		t.Errorf("expected 5 bound / 0 skipped / 0 failed, got %d / %d / %d",
			report.Bound, report.Skipped, report.Failed)
	}
	if report.Unclassified != 1 {
		t.Errorf("expected 1 unclassified instance, got %d", report.Unclassified)
	}

	// 5 bind attempts, not 6: the zone-less instance is never bound.
	if m.BindCalls != 5 {
		t.Errorf("expected 5 bind calls, got %d", m.BindCalls)
	}

	if _, ok := m.Reservations["capres-test-n2-standard-4-za"]; !ok {
		t.Errorf("missing n2 reservation: %v", m.Reservations)
	}
	if _, ok := m.Reservations["capres-test-e2-standard-2-zb"]; !ok {
		t.Errorf("missing e2 reservation: %v", m.Reservations)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	m := provider.NewMockProvider()
	seedFleet(m)
	e := New(m, testLogger())

	if _, err := e.Apply(context.Background(), testOpts()); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	createsAfterFirst := m.CreateCalls
	bindsAfterFirst := m.BindCalls

	report, err := e.Apply(context.Background(), testOpts())
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if report.ReservationsCreated != 0 || report.ReservationsExisting != 2 {
		t.Errorf("second run: expected 0 created / 2 existing, got %d / %d",
			report.ReservationsCreated, report.ReservationsExisting)
	}
	if report.Bound != 0 || report.Skipped != 5 {
		t.Errorf("second run: expected all bindings skipped, got %d bound / %d skipped",
			report.Bound, report.Skipped)
	}
	if m.BindCalls != bindsAfterFirst {
		t.Errorf("second run issued %d extra bind calls", m.BindCalls-bindsAfterFirst)
	}
	// Only the preflight probe creates anything on the second run.
	if extra := m.CreateCalls - createsAfterFirst; extra != 1 {
		t.Errorf("second run: expected only the probe create call, got %d extra", extra)
	}
}

func TestApplyContinuesPastPreflightWarning(t *testing.T) {
	m := provider.NewMockProvider()
	seedFleet(m)
	m.CapabilityErr = errors.New("Quota RESERVATIONS exceeded")
	e := New(m, testLogger())

	report, err := e.Apply(context.Background(), testOpts())
	if err != nil {
		t.Fatalf("preflight NotReady must not abort the run: %v", err)
	}
	if report.Preflight.Ready {
		t.Errorf("expected NotReady preflight")
	}
	if report.Preflight.Category != "quota" {
		t.Errorf("expected quota category, got %q", report.Preflight.Category)
	}
	// Bulk operations still ran.
	if report.ReservationsCreated != 2 || report.Bound != 5 {
		t.Errorf("bulk operations skipped after preflight warning: %+v", report)
	}
}

func TestApplyInventoryFailureIsFatal(t *testing.T) {
	m := provider.NewMockProvider()
	m.ListErr = errors.New("backend unavailable")
	e := New(m, testLogger())

	_, err := e.Apply(context.Background(), testOpts())
	if err == nil {
		t.Fatalf("expected fatal error for missing inventory")
	}
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %T: %v", err, err)
	}
	if m.CreateCalls != 0 || m.BindCalls != 0 {
		t.Errorf("no mutation expected after fatal inventory failure")
	}
}

func TestApplyGroupFailureIsFatal(t *testing.T) {
	m := provider.NewMockProvider()
	seedFleet(m)
	m.EnsureGroupErr = errors.New("backend unavailable")
	e := New(m, testLogger())

	report, err := e.Apply(context.Background(), testOpts())
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if report == nil {
		t.Fatalf("partial report expected alongside the fatal error")
	}
	// No reservations without a group; the probe is the only create.
	if got := m.CreateCalls; got > 1 {
		t.Errorf("reservations must not be created without a group, got %d create calls", got)
	}
	if m.BindCalls != 0 {
		t.Errorf("no binding expected after fatal group failure")
	}
}

func TestApplyPartialReservationFailure(t *testing.T) {
	m := provider.NewMockProvider()
	seedFleet(m)
	m.CreateReservationErr["capres-test-n2-standard-4-za"] = errors.New("Quota CPUS exceeded")
	e := New(m, testLogger())

	report, err := e.Apply(context.Background(), testOpts())
	if err != nil {
		t.Fatalf("per-item failure must not be fatal: %v", err)
	}

	if report.ReservationsCreated != 1 || len(report.ReservationFailures) != 1 {
		t.Fatalf("expected 1 created / 1 failed reservation, got %+v", report)
	}
	// The two e2 instances still bind; the three n2 instances fail
	// explicitly with no reservation to reference.
	if report.Bound != 2 {
		t.Errorf("expected 2 instances bound for the surviving bucket, got %d", report.Bound)
	}
	if report.Failed != 3 {
		t.Errorf("expected 3 explicit binding failures, got %d", report.Failed)
	}
}

func TestPlanMatchesApplyAndIsDeterministic(t *testing.T) {
	m := provider.NewMockProvider()
	seedFleet(m)
	e := New(m, testLogger())

	first, err := e.Plan(context.Background(), testOpts())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	// Dry run mutates nothing.
	if m.CreateCalls != 0 || m.BindCalls != 0 || len(m.Groups) != 0 {
		t.Fatalf("dry run touched the provider: %d creates, %d binds", m.CreateCalls, m.BindCalls)
	}

	for i := 0; i < 5; i++ {
		again, err := e.Plan(context.Background(), testOpts())
		if err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if again.Render() != first.Render() {
			t.Fatalf("plan output changed between identical invocations:\n%s\nvs\n%s", first.Render(), again.Render())
		}
	}

	if len(first.Reservations) != 2 {
		t.Errorf("expected 2 planned reservations, got %d", len(first.Reservations))
	}
	if len(first.Assignments) != 5 {
		t.Errorf("expected 5 planned assignments, got %d", len(first.Assignments))
	}
	if first.Unclassified != 1 {
		t.Errorf("expected 1 unclassified, got %d", first.Unclassified)
	}

	// The plan's reservation names are exactly the ones Apply creates.
	if _, err := e.Apply(context.Background(), testOpts()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, planned := range first.Reservations {
		if _, ok := m.Reservations[planned.Name]; !ok {
			t.Errorf("planned reservation %s was not created by apply", planned.Name)
		}
	}
}
