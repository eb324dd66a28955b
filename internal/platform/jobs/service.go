package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/ctxlog"
)

const (
	JobComplianceSweep = "compliance_sweep"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunStore records job runs and lists the tenants periodic jobs fan out to.
type RunStore interface {
	ListTenants(ctx context.Context) ([]string, error)
	StartRun(ctx context.Context, tenantID, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

// TenantJob runs once per tenant on every tick of its schedule.
type TenantJob func(ctx context.Context, tenantID string) (any, error)

type schedule struct {
	jobType  string
	interval time.Duration
	run      TenantJob
}

type Service struct {
	store     RunStore
	queue     chan job
	schedules []schedule
	wg        sync.WaitGroup
}

type job struct {
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

func New(store RunStore) *Service {
	return &Service{
		store: store,
		queue: make(chan job, 128),
	}
}

// Schedule registers a periodic per-tenant job. It must be called before Start.
func (s *Service) Schedule(jobType string, interval time.Duration, run TenantJob) {
	if interval <= 0 {
		return
	}
	s.schedules = append(s.schedules, schedule{jobType: jobType, interval: interval, run: run})
}

// Start launches the worker and one ticker per schedule; all stop when ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	for _, sch := range s.schedules {
		sch := sch
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick(ctx, sch)
		}()
	}
}

// Wait blocks until every goroutine started by Start has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

// EnqueueAll queues run for every tenant.
func (s *Service) EnqueueAll(ctx context.Context, jobType string, run TenantJob) error {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return err
	}
	for _, tenantID := range tenants {
		tenant := tenantID
		s.Enqueue(jobType, tenant, func(ctx context.Context) (any, error) {
			return run(ctx, tenant)
		})
	}
	return nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				ctxlog.From(ctx).Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context, sch schedule) {
	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.EnqueueAll(ctx, sch.jobType, sch.run); err != nil {
				ctxlog.From(ctx).Warn("scheduler tenant lookup failed", "jobType", sch.jobType, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	logger := ctxlog.From(ctx)
	runID, err := s.store.StartRun(ctx, j.TenantID, j.Type)
	if err != nil {
		logger.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	details, runErr := j.Run(ctx)
	status := StatusCompleted
	if runErr != nil {
		status = StatusFailed
		details = map[string]any{"error": runErr.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		logger.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if err := s.store.FinishRun(ctx, runID, status, detailsJSON); err != nil {
			logger.Warn("job run update failed", "runId", runID, "err", err)
		}
	}
	return details, runErr
}
