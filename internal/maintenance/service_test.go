package maintenance

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "maintenance-test", Output: io.Discard})
}

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

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

func TestRunCycleRunsEveryJobEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Jobs: []Job{failing, nil, ok}, Lock: lock})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job once, got ok=%d failing=%d", ok.runs, failing.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "ok"}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Jobs: []Job{job}, Lock: &fakeLock{held: true}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while another worker holds the lock, got %d", job.runs)
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without jobs")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger(), Jobs: []Job{&testJob{}}}); err == nil {
		t.Fatal("expected error without lock")
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	job := &testJob{name: "ok"}
	svc, err := NewService(ServiceParams{Logger: testLogger(), Jobs: []Job{job}, Lock: &fakeLock{}, Interval: time.Hour})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the first cycle to run immediately, got %d", job.runs)
	}
}

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockOwnership(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, "studyhub:maintenance:lock:test", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "studyhub:maintenance:lock:test", 0)
	ctx := context.Background()

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("expected first acquire to win")
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second acquire to lose")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if len(store.values) != 1 {
		t.Fatal("non-owner release must not delete the key")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(store.values) != 0 {
		t.Fatal("owner release should delete the key")
	}

	// A lease that expired and was re-taken elsewhere must survive a late release.
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("expected reacquire to win")
	}
	store.values["studyhub:maintenance:lock:test"] = "someone-else"
	if err := first.Release(ctx); err != nil {
		t.Fatalf("late release: %v", err)
	}
	if store.values["studyhub:maintenance:lock:test"] != "someone-else" {
		t.Fatal("release deleted a lease it no longer owned")
	}
}
