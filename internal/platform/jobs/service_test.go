package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/goleak"
)

type fakeRunStore struct {
	mu       sync.Mutex
	tenants  []string
	started  []string
	finished map[string]string
	details  map[string][]byte
}

func newFakeRunStore(tenants ...string) *fakeRunStore {
	return &fakeRunStore{tenants: tenants, finished: map[string]string{}, details: map[string][]byte{}}
}

func (f *fakeRunStore) ListTenants(context.Context) ([]string, error) {
	return f.tenants, nil
}

func (f *fakeRunStore) StartRun(_ context.Context, tenantID, jobType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := jobType + ":" + tenantID
	f.started = append(f.started, id)
	return id, nil
}

func (f *fakeRunStore) FinishRun(_ context.Context, runID, status string, details []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[runID] = status
	f.details[runID] = details
	return nil
}

func (f *fakeRunStore) status(runID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished[runID]
}

func TestRunNowRecordsOutcome(t *testing.T) {
	store := newFakeRunStore()
	svc := New(store)

	_, err := svc.RunNow(context.Background(), JobComplianceSweep, "t1", func(context.Context) (any, error) {
		return map[string]int{"items": 3}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.status("compliance_sweep:t1"); got != StatusCompleted {
		t.Fatalf("expected completed, got %q", got)
	}

	_, err = svc.RunNow(context.Background(), "other", "t1", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := store.status("other:t1"); got != StatusFailed {
		t.Fatalf("expected failed, got %q", got)
	}
	var details map[string]any
	if err := json.Unmarshal(store.details["other:t1"], &details); err != nil {
		t.Fatalf("details not json: %v", err)
	}
	if details["error"] != "boom" {
		t.Fatalf("expected error in details, got %+v", details)
	}
}

func TestScheduledJobsRunPerTenantAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newFakeRunStore("t1", "t2")
	svc := New(store)

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{})
	svc.Schedule(JobComplianceSweep, 5*time.Millisecond, func(_ context.Context, tenantID string) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		seen[tenantID] = true
		if len(seen) == 2 {
			select {
			case <-done:
			default:
				close(done)
			}
		}
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job did not run for every tenant")
	}
	cancel()
	svc.Wait()
}

func TestScheduleIgnoresNonPositiveInterval(t *testing.T) {
	svc := New(newFakeRunStore())
	svc.Schedule(JobComplianceSweep, 0, func(context.Context, string) (any, error) { return nil, nil })
	if len(svc.schedules) != 0 {
		t.Fatalf("expected no schedules, got %d", len(svc.schedules))
	}
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	svc := New(newFakeRunStore())
	noop := func(context.Context) (any, error) { return nil, nil }
	for i := 0; i < cap(svc.queue); i++ {
		if !svc.Enqueue("x", "t1", noop) {
			t.Fatalf("enqueue %d failed early", i)
		}
	}
	if svc.Enqueue("x", "t1", noop) {
		t.Fatal("expected full queue to reject")
	}
}
