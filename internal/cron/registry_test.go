package cron

import (
	"context"
	"testing"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	registry := NewRegistry(namedJob("expiry"), namedJob("cleanup"))
	registry.Register(namedJob("retention"))

	jobs := registry.Jobs()
	want := []string{"expiry", "cleanup", "retention"}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i, name := range want {
		if jobs[i].Name() != name {
			t.Fatalf("job %d = %q, want %q", i, jobs[i].Name(), name)
		}
	}
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	registry := NewRegistry(nil, namedJob("only"))
	registry.Register(nil)
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(namedJob("a"))
	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("mutating the returned slice changed the registry")
	}
}
