package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	registry := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	err = service.runCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "job fail: boom") {
		t.Fatalf("expected failing job reported, got %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
}

func TestServiceRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "media-intent-sweep"}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped while another instance holds the lock, ran %d", job.runs)
	}
}

func TestServiceRunOnceWithNoopLock(t *testing.T) {
	job := &testJob{name: "category-repair"}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(job),
		Lock:     NoopLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := service.RunOnce(context.Background()); err != nil {
			t.Fatalf("run once: %v", err)
		}
	}
	if job.runs != 2 {
		t.Fatalf("expected two runs, got %d", job.runs)
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})}); err == nil {
		t.Fatal("expected missing lock to fail")
	}
}

type panicJob struct{}

func (panicJob) Name() string { return "broken" }

func (panicJob) Run(context.Context) error {
	var m map[string]int
	m["x"] = 1
	return nil
}

func TestServiceRecoversJobPanic(t *testing.T) {
	after := &testJob{name: "after"}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(panicJob{}, after),
		Lock:     NoopLock{},
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	err = service.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "job broken: panic") {
		t.Fatalf("expected panic reported as failure, got %v", err)
	}
	if after.runs != 1 {
		t.Fatalf("expected later jobs to still run, ran %d", after.runs)
	}
}

func TestServiceRunCycleCombinesJobFailures(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	registry := NewRegistry(
		&testJob{name: "media-intent-sweep", err: errors.New("sftp down")},
		&testJob{name: "ok"},
		&testJob{name: "category-repair", err: errors.New("no default subcategory")},
	)
	service, err := NewService(ServiceParams{Logger: logg, Registry: registry, Lock: &fakeLock{}})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	err = service.runCycle(context.Background())
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("expected 2 combined failures, got %d: %v", len(errs), err)
	}
	if !strings.Contains(errs[0].Error(), "job media-intent-sweep") || !strings.Contains(errs[1].Error(), "job category-repair") {
		t.Fatalf("unexpected failure order %v", errs)
	}
}
