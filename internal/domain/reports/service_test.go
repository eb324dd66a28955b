package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"workforce/internal/domain/checklists"
	"workforce/internal/domain/compliance"
	"workforce/internal/domain/roster"
)

type matrixStub struct {
	m compliance.Matrix
}

func (s matrixStub) Matrix(context.Context, string, compliance.Scope, compliance.Options) (compliance.Matrix, error) {
	return s.m, nil
}

func (s matrixStub) ListSnapshots(context.Context, string, int) ([]compliance.Snapshot, error) {
	return nil, nil
}

type counterStub struct{}

func (counterStub) OpenCounts(context.Context, string) (checklists.OpenCounts, error) {
	return checklists.OpenCounts{Open: 3, WithOverdue: 1, Onboarding: 2, Offboarding: 1}, nil
}

type shiftStub struct {
	days int
}

func (s *shiftStub) Upcoming(_ context.Context, _ string, _ time.Time, days int) ([]roster.UpcomingShift, error) {
	s.days = days
	return []roster.UpcomingShift{
		{Shift: roster.Shift{ID: "s1"}, BlockedStaff: 2},
		{Shift: roster.Shift{ID: "s2"}},
		{Shift: roster.Shift{ID: "s3"}, BlockedStaff: 1},
	}, nil
}

func TestExecutiveDashboard(t *testing.T) {
	shifts := &shiftStub{}
	svc := NewService(nil, matrixStub{m: sampleMatrix()}, counterStub{}, shifts)

	got, err := svc.Executive(context.Background(), "t1", compliance.Scope{}, compliance.Options{})
	if err != nil {
		t.Fatalf("executive: %v", err)
	}
	if shifts.days != DashboardShiftDays {
		t.Fatalf("expected %d day outlook, got %d", DashboardShiftDays, shifts.days)
	}
	if got.Compliance.Items != 2 || got.Compliance.ItemsByStatus.Overdue != 1 || got.Compliance.ItemsByStatus.Missing != 1 {
		t.Fatalf("unexpected compliance summary %+v", got.Compliance)
	}
	if len(got.Compliance.TopRisks) != 2 || len(got.TopRequirements) != 2 {
		t.Fatalf("expected 2 categories and 2 requirements, got %d %d", len(got.Compliance.TopRisks), len(got.TopRequirements))
	}
	if got.Checklists.Open != 3 {
		t.Fatalf("expected checklist counts, got %+v", got.Checklists)
	}
	if got.Shifts.Total != 3 || got.Shifts.BlockedStaff != 3 || got.Shifts.AtRisk != 2 {
		t.Fatalf("unexpected shift outlook %+v", got.Shifts)
	}
}

func TestBuildJobRunsBaseQuery(t *testing.T) {
	from := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildJobRunsBaseQuery("t1", JobRunFilter{JobType: " compliance_sweep ", Status: "failed", StartedFrom: &from})
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	for _, want := range []string{"job_type = $2", "status = $3", "started_at >= $4"} {
		if !strings.Contains(query, want) {
			t.Fatalf("expected %q in query %s", want, query)
		}
	}
	if args[1] != "compliance_sweep" {
		t.Fatalf("expected trimmed job type, got %v", args[1])
	}
}

func TestDecodeDetails(t *testing.T) {
	if got := decodeDetails([]byte(`{"reminded":2}`)); got["reminded"] != float64(2) {
		t.Fatalf("unexpected details %v", got)
	}
	if got := decodeDetails([]byte("not json")); got["raw"] != "not json" {
		t.Fatalf("expected raw fallback, got %v", got)
	}
	if got := decodeDetails(nil); len(got) != 0 {
		t.Fatalf("expected empty details, got %v", got)
	}
}
