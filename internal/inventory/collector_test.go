package inventory

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/reservectl/reservectl/internal/provider"
)

func testCollector(m *provider.MockProvider) *Collector {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewCollector(m, log)
}

func TestCollectReturnsInstances(t *testing.T) {
	m := provider.NewMockProvider()
	m.Instances = []provider.Instance{
		{Name: "vm-1", SizeClass: "n2-standard-4", Zone: "us-central1-a", BoundGroup: "capres-old"},
		{Name: "vm-2", SizeClass: "e2-standard-2"},
	}

	instances, err := testCollector(m).Collect(context.Background(), provider.Scope{Project: "p"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}
	if instances[0].BoundGroup != "capres-old" {
		t.Errorf("existing binding lost during collection: %+v", instances[0])
	}
}

func TestCollectQueryFailure(t *testing.T) {
	m := provider.NewMockProvider()
	m.ListErr = errors.New("backend unavailable")

	_, err := testCollector(m).Collect(context.Background(), provider.Scope{})
	if err == nil {
		t.Fatalf("expected error")
	}
	var ce *CollectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CollectionError, got %T", err)
	}
}

func TestCollectMalformedRecord(t *testing.T) {
	m := provider.NewMockProvider()
	m.Instances = []provider.Instance{
		{Name: "vm-1", SizeClass: "n2-standard-4"},
		{Name: "vm-2"}, // missing size class
	}

	_, err := testCollector(m).Collect(context.Background(), provider.Scope{})
	var ce *CollectionError
	if !errors.As(err, &ce) {
		t.Fatalf("malformed record must fail collection, got %v", err)
	}
}
