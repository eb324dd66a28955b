package reports

import (
	"context"
	"time"

	"workforce/internal/domain/checklists"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/roster"
)

const (
	DashboardTopCategories   = 5
	DashboardTopRequirements = 10
	DashboardShiftDays       = 7
)

type JobStore interface {
	ListJobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, tenantID string, filter JobRunFilter) (int, error)
}

type MatrixSource interface {
	Matrix(ctx context.Context, tenantID string, scope compliance.Scope, opts compliance.Options) (compliance.Matrix, error)
	ListSnapshots(ctx context.Context, tenantID string, limit int) ([]compliance.Snapshot, error)
}

type ChecklistCounter interface {
	OpenCounts(ctx context.Context, tenantID string) (checklists.OpenCounts, error)
}

type ShiftSource interface {
	Upcoming(ctx context.Context, tenantID string, now time.Time, days int) ([]roster.UpcomingShift, error)
}

type Service struct {
	Store      JobStore
	Compliance MatrixSource
	Checklists ChecklistCounter
	Roster     ShiftSource
	Now        func() time.Time
}

func NewService(store JobStore, matrix MatrixSource, counter ChecklistCounter, shifts ShiftSource) *Service {
	return &Service{Store: store, Compliance: matrix, Checklists: counter, Roster: shifts, Now: time.Now}
}

type ShiftOutlook struct {
	Shifts       []roster.UpcomingShift `json:"shifts"`
	Total        int                    `json:"total"`
	BlockedStaff int                    `json:"blockedStaff"`
	AtRisk       int                    `json:"atRisk"`
}

// Executive is the executive dashboard payload.
type Executive struct {
	AsOf            compliance.Date       `json:"asOf"`
	Compliance      compliance.Summary    `json:"compliance"`
	TopRequirements []compliance.Risk     `json:"topRequirements"`
	Checklists      checklists.OpenCounts `json:"checklists"`
	Shifts          ShiftOutlook          `json:"shifts"`
}

func (s *Service) Executive(ctx context.Context, tenantID string, scope compliance.Scope, opts compliance.Options) (Executive, error) {
	m, err := s.Compliance.Matrix(ctx, tenantID, scope, opts)
	if err != nil {
		return Executive{}, err
	}
	out := Executive{
		AsOf:            m.AsOf,
		Compliance:      compliance.AggregateBy(m.Items, compliance.GroupByCategory, DashboardTopCategories),
		TopRequirements: compliance.RankRisks(m.Items, compliance.GroupByRequirement, DashboardTopRequirements),
	}

	if out.Checklists, err = s.Checklists.OpenCounts(ctx, tenantID); err != nil {
		return Executive{}, err
	}

	shifts, err := s.Roster.Upcoming(ctx, tenantID, s.Now(), DashboardShiftDays)
	if err != nil {
		return Executive{}, err
	}
	out.Shifts = ShiftOutlook{Shifts: shifts, Total: len(shifts)}
	for _, shift := range shifts {
		out.Shifts.BlockedStaff += shift.BlockedStaff
		if shift.BlockedStaff > 0 {
			out.Shifts.AtRisk++
		}
	}
	return out, nil
}

func (s *Service) Matrix(ctx context.Context, tenantID string, scope compliance.Scope, opts compliance.Options) (compliance.Matrix, error) {
	return s.Compliance.Matrix(ctx, tenantID, scope, opts)
}

// Snapshots returns the org summaries stored by past sweeps, newest first.
func (s *Service) Snapshots(ctx context.Context, tenantID string, limit int) ([]compliance.Snapshot, error) {
	snaps, err := s.Compliance.ListSnapshots(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []compliance.Snapshot{}
	}
	return snaps, nil
}

func (s *Service) JobRuns(ctx context.Context, tenantID string, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	total, err := s.Store.CountJobRuns(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.Store.ListJobRuns(ctx, tenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
