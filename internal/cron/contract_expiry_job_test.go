package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/routong/routong-backend/pkg/logger"
)

type fakeSweeper struct {
	settled int
	err     error
	calls   int
}

func (f *fakeSweeper) Tick(ctx context.Context) (int, error) {
	f.calls++
	return f.settled, f.err
}

func newContractExpiryJob(t *testing.T, sweeper *fakeSweeper) Job {
	t.Helper()
	job, err := NewContractExpiryJob(ContractExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Settlement: sweeper,
	})
	if err != nil {
		t.Fatalf("NewContractExpiryJob: %v", err)
	}
	return job
}

func TestContractExpiryJobRunsSweep(t *testing.T) {
	sweeper := &fakeSweeper{settled: 3}
	job := newContractExpiryJob(t, sweeper)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

func TestContractExpiryJobPropagatesSweepErrors(t *testing.T) {
	sweeper := &fakeSweeper{settled: 1, err: errors.New("hold already resolved")}
	job := newContractExpiryJob(t, sweeper)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestContractExpiryJobRequiresDependencies(t *testing.T) {
	if _, err := NewContractExpiryJob(ContractExpiryJobParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
	if _, err := NewContractExpiryJob(ContractExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	}); err == nil {
		t.Fatal("expected error for missing settlement service")
	}
}
