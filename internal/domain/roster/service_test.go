package roster

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
)

type memStore struct {
	shifts      map[string]Shift
	assignments []Assignment
}

func (m *memStore) CreateShift(_ context.Context, _ string, shift Shift) (Shift, error) {
	shift.ID = "s" + string(rune('0'+len(m.shifts)+1))
	m.shifts[shift.ID] = shift
	return shift, nil
}

func (m *memStore) GetShift(_ context.Context, _, shiftID string) (Shift, error) {
	shift, ok := m.shifts[shiftID]
	if !ok {
		return Shift{}, ErrShiftNotFound
	}
	return shift, nil
}

func (m *memStore) ListShifts(_ context.Context, _ string, filter ShiftFilter) ([]Shift, error) {
	var out []Shift
	for _, shift := range m.shifts {
		if shift.StartsAt.Before(filter.From) || !shift.StartsAt.Before(filter.To) {
			continue
		}
		out = append(out, shift)
	}
	return out, nil
}

func (m *memStore) ListAssignments(_ context.Context, _, shiftID string) ([]Assignment, error) {
	var out []Assignment
	for _, a := range m.assignments {
		if a.ShiftID == shiftID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CreateAssignment(_ context.Context, _ string, a Assignment) (Assignment, error) {
	for _, existing := range m.assignments {
		if existing.ShiftID == a.ShiftID && existing.EmployeeID == a.EmployeeID {
			return Assignment{}, ErrAlreadyAssigned
		}
	}
	a.ID = "a" + a.EmployeeID
	m.assignments = append(m.assignments, a)
	return a, nil
}

type stubChecker struct {
	blocked map[string][]compliance.Item
	asked   []compliance.Date
}

func (s *stubChecker) BlockingIssues(_ context.Context, _, employeeID string, asOf compliance.Date) ([]compliance.Item, error) {
	s.asked = append(s.asked, asOf)
	return s.blocked[employeeID], nil
}

func (s *stubChecker) BlockedEmployees(_ context.Context, _ string, _ compliance.Scope, _ compliance.Date) (map[string]bool, error) {
	out := map[string]bool{}
	for id, items := range s.blocked {
		if len(items) > 0 {
			out[id] = true
		}
	}
	return out, nil
}

type memRecorder struct {
	entries []audit.Entry
}

func (m *memRecorder) Record(_ context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type memNotifier struct {
	overrides []string
}

func (m *memNotifier) NotifyForcedAssignment(_ context.Context, _, shiftID, employeeID, _ string, _ []string) error {
	m.overrides = append(m.overrides, shiftID+"/"+employeeID)
	return nil
}

func newFixture(t *testing.T) (*Service, *memStore, *stubChecker, *memRecorder) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	store := &memStore{shifts: map[string]Shift{
		// 23:30 UTC on May 31 is already June 1 in Berlin.
		"night": {ID: "night", Line: "L1", StartsAt: time.Date(2024, time.May, 31, 23, 30, 0, 0, time.UTC), EndsAt: time.Date(2024, time.June, 1, 7, 30, 0, 0, time.UTC)},
	}}
	overdue := -3
	checker := &stubChecker{blocked: map[string][]compliance.Item{
		"e1": {{
			Employee:    compliance.Employee{ID: "e1"},
			Requirement: compliance.Requirement{ID: "lic1", Code: "LIC1", Criticality: compliance.CriticalityBlocking},
			Result:      compliance.Result{Status: compliance.StatusOverdue, DaysLeft: &overdue},
		}},
	}}
	rec := &memRecorder{}
	return NewService(store, checker, rec, loc), store, checker, rec
}

var (
	hr      = auth.UserContext{UserID: "u-hr", TenantID: "t1", RoleName: auth.RoleHR}
	manager = auth.UserContext{UserID: "u-mgr", TenantID: "t1", RoleName: auth.RoleManager}
)

func TestAssignChecksComplianceOnShiftDate(t *testing.T) {
	svc, _, checker, rec := newFixture(t)

	got, err := svc.Assign(context.Background(), audit.Meta{TenantID: "t1"}, manager, "night", AssignRequest{EmployeeID: "e2"})
	if err != nil {
		t.Fatalf("expected assignment, got %v", err)
	}
	if got.Forced {
		t.Fatalf("expected unforced assignment")
	}
	if len(checker.asked) != 1 || checker.asked[0].String() != "2024-06-01" {
		t.Fatalf("expected evaluation on 2024-06-01, got %v", checker.asked)
	}
	if len(rec.entries) != 1 || rec.entries[0].Action != audit.ActionAssign {
		t.Fatalf("expected one assign audit entry, got %+v", rec.entries)
	}
}

func TestAssignRefusesBlockedEmployee(t *testing.T) {
	svc, store, _, _ := newFixture(t)

	_, err := svc.Assign(context.Background(), audit.Meta{TenantID: "t1"}, manager, "night", AssignRequest{EmployeeID: "e1"})
	if !errors.Is(err, ErrComplianceBlocked) {
		t.Fatalf("expected compliance block, got %v", err)
	}
	var blocked *BlockedError
	if !errors.As(err, &blocked) || len(blocked.Items) != 1 || blocked.Items[0].Requirement.Code != "LIC1" {
		t.Fatalf("expected blocking item LIC1, got %+v", blocked)
	}
	if len(store.assignments) != 0 {
		t.Fatalf("expected no assignment stored")
	}
}

func TestForceAssignRules(t *testing.T) {
	tests := []struct {
		name    string
		actor   auth.UserContext
		reason  string
		wantErr error
	}{
		{name: "manager cannot force", actor: manager, reason: "short staffed", wantErr: ErrForceNotAllowed},
		{name: "reason required", actor: hr, reason: "  ", wantErr: ErrForceReason},
		{name: "hr with reason", actor: hr, reason: "renewal booked"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			svc, store, _, rec := newFixture(t)
			notifier := &memNotifier{}
			svc.Notifier = notifier
			got, err := svc.Assign(context.Background(), audit.Meta{TenantID: "t1", ActorID: tc.actor.UserID}, tc.actor, "night", AssignRequest{EmployeeID: "e1", Force: true, Reason: tc.reason})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected forced assignment, got %v", err)
			}
			if !got.Forced || got.ForceReason != "renewal booked" {
				t.Fatalf("expected forced assignment with reason, got %+v", got)
			}
			if len(store.assignments) != 1 {
				t.Fatalf("expected stored assignment")
			}
			if len(rec.entries) != 1 || rec.entries[0].Action != audit.ActionForceAssign {
				t.Fatalf("expected force_assign audit, got %+v", rec.entries)
			}
			if len(notifier.overrides) != 1 || notifier.overrides[0] != "night/e1" {
				t.Fatalf("expected HR to be notified, got %v", notifier.overrides)
			}
		})
	}
}

func TestForceOnCompliantEmployeeIsPlainAssign(t *testing.T) {
	svc, _, _, rec := newFixture(t)
	got, err := svc.Assign(context.Background(), audit.Meta{TenantID: "t1"}, hr, "night", AssignRequest{EmployeeID: "e3", Force: true, Reason: "n/a"})
	if err != nil {
		t.Fatalf("expected assignment, got %v", err)
	}
	if got.Forced {
		t.Fatalf("expected no override when nothing blocks")
	}
	if rec.entries[0].Action != audit.ActionAssign {
		t.Fatalf("expected assign audit, got %s", rec.entries[0].Action)
	}
}

func TestCreateShiftValidatesWindow(t *testing.T) {
	svc, _, _, _ := newFixture(t)
	start := time.Date(2024, time.June, 3, 6, 0, 0, 0, time.UTC)
	_, err := svc.CreateShift(context.Background(), audit.Meta{TenantID: "t1"}, Shift{StartsAt: start, EndsAt: start})
	if !errors.Is(err, ErrInvalidShiftWindow) {
		t.Fatalf("expected invalid window, got %v", err)
	}

	created, err := svc.CreateShift(context.Background(), audit.Meta{TenantID: "t1"}, Shift{RequiredRole: " op ", StartsAt: start, EndsAt: start.Add(8 * time.Hour)})
	if err != nil {
		t.Fatalf("expected shift, got %v", err)
	}
	if created.RequiredRole != "OP" {
		t.Fatalf("expected normalized role, got %q", created.RequiredRole)
	}
}

func TestUpcomingCountsBlockedStaff(t *testing.T) {
	svc, store, _, _ := newFixture(t)
	store.assignments = []Assignment{{ShiftID: "night", EmployeeID: "e1"}, {ShiftID: "night", EmployeeID: "e2"}}
	night := store.shifts["night"]
	night.Assigned = 2
	store.shifts["night"] = night

	got, err := svc.Upcoming(context.Background(), "t1", time.Date(2024, time.May, 30, 0, 0, 0, 0, time.UTC), 7)
	if err != nil {
		t.Fatalf("expected upcoming shifts, got %v", err)
	}
	if len(got) != 1 || got[0].BlockedStaff != 1 {
		t.Fatalf("expected one shift with one blocked employee, got %+v", got)
	}
}
