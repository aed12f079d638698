package provider

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/iterator"
)

func TestIterDoneDistinguishesExhaustionFromFailure(t *testing.T) {
	if !iterDone(iterator.Done) {
		t.Errorf("iterator exhaustion not recognized")
	}
	if !iterDone(fmt.Errorf("listing: %w", iterator.Done)) {
		t.Errorf("wrapped exhaustion not recognized")
	}
	// A real list failure must never read as exhaustion: ListInstances
	// would return a partial inventory as complete and EnsureGroup would
	// report a group as created on a failed lookup.
	for _, err := range []error{
		errors.New("googleapi: Error 403: permission denied"),
		errors.New("googleapi: Error 404: project not found"),
		errors.New("connection reset by peer"),
	} {
		if iterDone(err) {
			t.Errorf("list failure %v misread as exhaustion", err)
		}
	}
}

func TestZoneOf(t *testing.T) {
	p := NewGCEProvider(GCEConfig{Project: "p", Region: "us-central1"})

	tests := []struct {
		name string
		want string
	}{
		{"capres-prod-n2-standard-4-za", "us-central1-a"},
		{"capres-prod-probe-ab12cd34-zb", "us-central1-b"},
	}
	for _, tt := range tests {
		got, err := p.zoneOf(tt.name)
		if err != nil {
			t.Errorf("zoneOf(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("zoneOf(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if _, err := p.zoneOf("no-suffix"); err == nil {
		t.Errorf("expected error for name without zone suffix")
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.googleapis.com/compute/v1/projects/p/zones/us-central1-a", "us-central1-a"},
		{"zones/us-central1-a/machineTypes/n2-standard-4", "n2-standard-4"},
		{"n2-standard-4", "n2-standard-4"},
	}
	for _, tt := range tests {
		if got := lastPathSegment(tt.url); got != tt.want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestErrorFolding(t *testing.T) {
	if !IsAlreadyExists(errors.New("googleapi: Error 409: The resource already exists, alreadyExists")) {
		t.Errorf("409 alreadyExists not recognized")
	}
	if IsAlreadyExists(errors.New("quota exceeded")) {
		t.Errorf("quota error misread as alreadyExists")
	}
	if !IsNotFound(errors.New("googleapi: Error 404: The resource was not found, notFound")) {
		t.Errorf("404 notFound not recognized")
	}
	if IsNotFound(nil) || IsAlreadyExists(nil) {
		t.Errorf("nil error must not match")
	}
}
