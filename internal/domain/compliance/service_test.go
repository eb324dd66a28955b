package compliance_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/compliance"
)

type fakeStore struct {
	requirements []compliance.Requirement
	rules        []compliance.Applicability
	subjects     []compliance.Employee
	assignments  []compliance.Assignment
	snapshots    map[string]compliance.Summary
	createErr    error
	// upsertFailAt fails the batch on that row (1-based) when set.
	upsertFailAt int
}

func (f *fakeStore) ListRequirements(_ context.Context, _ string, includeInactive bool) ([]compliance.Requirement, error) {
	var out []compliance.Requirement
	for _, r := range f.requirements {
		if r.Active || includeInactive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRequirement(_ context.Context, _, id string) (compliance.Requirement, error) {
	for _, r := range f.requirements {
		if r.ID == id {
			return r, nil
		}
	}
	return compliance.Requirement{}, compliance.ErrRequirementNotFound
}

func (f *fakeStore) CreateRequirement(_ context.Context, _ string, req compliance.Requirement) (compliance.Requirement, error) {
	if f.createErr != nil {
		return compliance.Requirement{}, f.createErr
	}
	req.ID = "req-" + strings.ToLower(req.Code)
	f.requirements = append(f.requirements, req)
	return req, nil
}

func (f *fakeStore) UpdateRequirement(_ context.Context, _ string, req compliance.Requirement) (compliance.Requirement, error) {
	for i, r := range f.requirements {
		if r.ID == req.ID {
			f.requirements[i] = req
			return req, nil
		}
	}
	return compliance.Requirement{}, compliance.ErrRequirementNotFound
}

func (f *fakeStore) ListApplicability(context.Context, string) ([]compliance.Applicability, error) {
	return f.rules, nil
}

func (f *fakeStore) ReplaceApplicability(_ context.Context, _, requirementID string, rows []compliance.Applicability) error {
	kept := f.rules[:0:0]
	for _, r := range f.rules {
		if r.RequirementID != requirementID {
			kept = append(kept, r)
		}
	}
	f.rules = append(kept, rows...)
	return nil
}

func (f *fakeStore) inScope(emp compliance.Employee, scope compliance.Scope) bool {
	switch {
	case scope.EmployeeID != "" && emp.ID != scope.EmployeeID:
		return false
	case scope.SiteID != "" && emp.SiteID != scope.SiteID:
		return false
	case scope.Line != "" && emp.Line != scope.Line:
		return false
	}
	return true
}

func (f *fakeStore) ListSubjects(_ context.Context, _ string, scope compliance.Scope) ([]compliance.Employee, error) {
	var out []compliance.Employee
	for _, e := range f.subjects {
		if f.inScope(e, scope) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSubject(_ context.Context, _, id string) (compliance.Employee, error) {
	for _, e := range f.subjects {
		if e.ID == id {
			return e, nil
		}
	}
	return compliance.Employee{}, compliance.ErrEmployeeNotFound
}

func (f *fakeStore) ListAssignments(_ context.Context, _ string, scope compliance.Scope) ([]compliance.Assignment, error) {
	var out []compliance.Assignment
	for _, a := range f.assignments {
		emp, err := f.GetSubject(context.Background(), "", a.EmployeeID)
		if err == nil && f.inScope(emp, scope) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAssignment(_ context.Context, _, employeeID, requirementID string) (compliance.Assignment, bool, error) {
	for _, a := range f.assignments {
		if a.EmployeeID == employeeID && a.RequirementID == requirementID {
			return a, true, nil
		}
	}
	return compliance.Assignment{}, false, nil
}

func (f *fakeStore) UpsertAssignment(_ context.Context, _ string, a compliance.Assignment) (compliance.Assignment, error) {
	a.ID = a.EmployeeID + "/" + a.RequirementID
	for i, existing := range f.assignments {
		if existing.EmployeeID == a.EmployeeID && existing.RequirementID == a.RequirementID {
			f.assignments[i] = a
			return a, nil
		}
	}
	f.assignments = append(f.assignments, a)
	return a, nil
}

func (f *fakeStore) UpsertAssignments(ctx context.Context, tenantID string, rows []compliance.Assignment) ([]compliance.Assignment, error) {
	committed := append([]compliance.Assignment(nil), f.assignments...)
	saved := make([]compliance.Assignment, 0, len(rows))
	for i, row := range rows {
		if f.upsertFailAt == i+1 {
			f.assignments = committed
			return nil, errors.New("connection reset")
		}
		a, _ := f.UpsertAssignment(ctx, tenantID, row)
		saved = append(saved, a)
	}
	return saved, nil
}

func (f *fakeStore) SaveSnapshot(_ context.Context, _ string, asOf compliance.Date, summary compliance.Summary) error {
	if f.snapshots == nil {
		f.snapshots = map[string]compliance.Summary{}
	}
	f.snapshots[asOf.String()] = summary
	return nil
}

func (f *fakeStore) ListSnapshots(context.Context, string, int) ([]compliance.Snapshot, error) {
	return nil, nil
}

type fakeRecorder struct {
	entries []audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, entry audit.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeReminders struct {
	items []compliance.Item
}

func (f *fakeReminders) SendComplianceReminders(_ context.Context, _ string, _ compliance.Date, items []compliance.Item) (int, error) {
	f.items = append(f.items, items...)
	return len(items), nil
}

// newFixture builds a plant with four operators on line A of site S1:
// E1 has an overdue forklift license and an expiring medical, E2 is fully valid,
// E3 has only an expiring medical, E4 has nothing on file.
func newFixture() (*compliance.Service, *fakeStore, *fakeRecorder) {
	store := &fakeStore{
		requirements: []compliance.Requirement{
			{ID: "lic1", Code: "LIC1", Name: "Forklift license", Category: compliance.CategoryLicense, Criticality: compliance.CriticalityBlocking, Active: true},
			{ID: "med1", Code: "MED1", Name: "Annual medical", Category: compliance.CategoryMedical, Criticality: compliance.CriticalityNormal, Active: true},
			{ID: "ctr1", Code: "CTR1", Name: "Line B contract", Category: compliance.CategoryContract, Criticality: compliance.CriticalityNormal, Active: true},
			{ID: "old1", Code: "OLD1", Name: "Retired", Category: compliance.CategoryOther, Criticality: compliance.CriticalityNormal, Active: false},
		},
		rules: []compliance.Applicability{
			{RequirementID: "lic1", AppliesToRole: "FORKLIFT"},
			{RequirementID: "ctr1", AppliesToLine: "B"},
		},
		subjects: []compliance.Employee{
			{ID: "e1", EmployeeNumber: "100", Name: "Alice", Line: "A", PrimaryRoleCode: "FORKLIFT", SiteID: "S1"},
			{ID: "e2", EmployeeNumber: "200", Name: "Bob", Line: "A", PrimaryRoleCode: "FORKLIFT", SiteID: "S1"},
			{ID: "e3", EmployeeNumber: "300", Name: "Cara", Line: "A", PrimaryRoleCode: "PACKER", SiteID: "S1"},
			{ID: "e4", EmployeeNumber: "400", Name: "Dan", Line: "A", PrimaryRoleCode: "PACKER", SiteID: "S1"},
		},
		assignments: []compliance.Assignment{
			{EmployeeID: "e1", RequirementID: "lic1", ValidTo: datePtr(2024, time.May, 15)},
			{EmployeeID: "e1", RequirementID: "med1", ValidTo: datePtr(2024, time.June, 20)},
			{EmployeeID: "e2", RequirementID: "lic1", ValidTo: datePtr(2025, time.January, 1)},
			{EmployeeID: "e2", RequirementID: "med1", ValidTo: datePtr(2025, time.January, 1)},
			{EmployeeID: "e3", RequirementID: "med1", ValidTo: datePtr(2024, time.June, 10)},
		},
	}
	recorder := &fakeRecorder{}
	svc := compliance.NewService(store, recorder, time.UTC, 30, 5)
	svc.Now = func() time.Time { return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, recorder
}

func TestEmployeeStatus(t *testing.T) {
	svc, _, _ := newFixture()

	st, err := svc.EmployeeStatus(context.Background(), "t1", "e1", compliance.Options{})
	gt.NoError(t, err)
	gt.Equal(t, st.AsOf, date(2024, time.June, 1))
	gt.Equal(t, len(st.Items), 2)
	gt.Equal(t, st.Primary, compliance.StatusOverdue)
	gt.NotNil(t, st.Blocker)
	gt.Equal(t, st.Blocker.Requirement.Code, "LIC1")
	gt.Equal(t, st.Counts.Overdue, 1)
	gt.Equal(t, st.Counts.Expiring, 1)
	gt.Equal(t, st.Items[0].Requirement.Code, "LIC1")
}

func TestEmployeeStatusWindowOverride(t *testing.T) {
	svc, _, _ := newFixture()

	st, err := svc.EmployeeStatus(context.Background(), "t1", "e3", compliance.Options{Window: intPtr(5)})
	gt.NoError(t, err)
	gt.Equal(t, len(st.Items), 1)
	gt.Equal(t, st.Items[0].Result.Status, compliance.StatusValid)
	gt.Equal(t, st.Primary, compliance.StatusValid)
	gt.True(t, st.Blocker == nil)

	_, err = svc.EmployeeStatus(context.Background(), "t1", "e3", compliance.Options{Window: intPtr(-1)})
	gt.True(t, errors.Is(err, compliance.ErrInvalidWarningWindow))
}

func TestEmployeeStatusExplicitAsOf(t *testing.T) {
	svc, _, _ := newFixture()

	asOf := date(2024, time.June, 25)
	st, err := svc.EmployeeStatus(context.Background(), "t1", "e3", compliance.Options{AsOf: &asOf})
	gt.NoError(t, err)
	gt.Equal(t, st.Items[0].Result.Status, compliance.StatusOverdue)
	gt.Equal(t, *st.Items[0].Result.DaysLeft, -15)
}

func TestEmployeeStatusUnknownEmployee(t *testing.T) {
	svc, _, _ := newFixture()
	_, err := svc.EmployeeStatus(context.Background(), "t1", "nobody", compliance.Options{})
	gt.True(t, errors.Is(err, compliance.ErrEmployeeNotFound))
}

func TestMatrixSkipsInactiveAndInapplicable(t *testing.T) {
	svc, _, _ := newFixture()

	m, err := svc.Matrix(context.Background(), "t1", compliance.Scope{SiteID: "S1"}, compliance.Options{})
	gt.NoError(t, err)
	gt.Equal(t, len(m.Requirements), 3)
	gt.Equal(t, len(m.Employees), 4)
	// e1, e2: LIC1 + MED1; e3, e4: MED1 only.
	gt.Equal(t, len(m.Items), 6)

	_, ok := m.Cell("e3", "lic1")
	gt.False(t, ok)
	cell, ok := m.Cell("e4", "med1")
	gt.True(t, ok)
	gt.Equal(t, cell.Result.Status, compliance.StatusMissing)
}

func TestOrgSummary(t *testing.T) {
	svc, _, _ := newFixture()

	summary, err := svc.OrgSummary(context.Background(), "t1", compliance.Scope{}, compliance.Options{}, 0)
	gt.NoError(t, err)
	gt.Equal(t, summary.Summary.Employees, 4)
	gt.Equal(t, summary.Summary.Items, 6)
	gt.Equal(t, summary.Summary.ItemsByStatus.Overdue, 1)
	gt.Equal(t, summary.Summary.ItemsByStatus.Expiring, 2)
	gt.Equal(t, summary.Summary.ItemsByStatus.Missing, 1)
	gt.Equal(t, summary.Summary.ItemsByStatus.Valid, 2)

	// medical: e1 expiring, e3 expiring, e4 missing; license: e1 overdue.
	gt.Equal(t, len(summary.Summary.TopRisks), 2)
	gt.Equal(t, summary.Summary.TopRisks[0].Key, "medical")
	gt.Equal(t, summary.Summary.TopRisks[0].Affected, 3)
	gt.Equal(t, summary.TopRequirements[0].Key, "med1")

	limited, err := svc.OrgSummary(context.Background(), "t1", compliance.Scope{}, compliance.Options{}, 1)
	gt.NoError(t, err)
	gt.Equal(t, len(limited.Summary.TopRisks), 1)
}

func TestInbox(t *testing.T) {
	svc, _, _ := newFixture()

	rows, asOf, err := svc.Inbox(context.Background(), "t1", compliance.Scope{}, compliance.Options{}, 0)
	gt.NoError(t, err)
	gt.Equal(t, asOf, date(2024, time.June, 1))
	gt.Equal(t, len(rows), 3)
	gt.Equal(t, rows[0].Employee.ID, "e1")
	gt.Equal(t, rows[0].Primary, compliance.StatusOverdue)
	gt.Equal(t, rows[0].Outstanding, 2)
	gt.Equal(t, rows[1].Employee.ID, "e3")
	gt.Equal(t, rows[1].Primary, compliance.StatusExpiring)
	gt.Equal(t, rows[2].Employee.ID, "e4")
	gt.Equal(t, rows[2].Primary, compliance.StatusMissing)

	top, _, err := svc.Inbox(context.Background(), "t1", compliance.Scope{}, compliance.Options{}, 1)
	gt.NoError(t, err)
	gt.Equal(t, len(top), 1)
}

func TestStatusFilter(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	statuses, err := compliance.ParseStatuses("expired, missing")
	gt.NoError(t, err)

	rows, _, err := svc.Inbox(ctx, "t1", compliance.Scope{}, compliance.Options{Statuses: statuses}, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 2)
	gt.Equal(t, rows[0].Employee.ID, "e1")
	gt.Equal(t, rows[1].Employee.ID, "e4")

	expiring, _, err := svc.Inbox(ctx, "t1", compliance.Scope{}, compliance.Options{Statuses: []compliance.Status{compliance.StatusExpiring}}, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(expiring), 1)
	gt.Equal(t, expiring[0].Employee.ID, "e3")

	m, err := svc.Matrix(ctx, "t1", compliance.Scope{}, compliance.Options{Statuses: []compliance.Status{compliance.StatusOverdue}})
	gt.NoError(t, err)
	gt.Equal(t, len(m.Items), 1)
	gt.Equal(t, m.Items[0].Employee.ID, "e1")
	gt.Equal(t, m.Items[0].Requirement.Code, "LIC1")
}

func TestBuildInboxOrdersByBlockerDate(t *testing.T) {
	a := compliance.Employee{ID: "a", Name: "Zed"}
	b := compliance.Employee{ID: "b", Name: "Amy"}
	req := compliance.Requirement{ID: "r", Code: "R"}
	items := []compliance.Item{
		{Employee: a, Requirement: req, ValidTo: datePtr(2024, time.June, 5), Result: compliance.Result{Status: compliance.StatusExpiring}},
		{Employee: b, Requirement: req, ValidTo: datePtr(2024, time.June, 9), Result: compliance.Result{Status: compliance.StatusExpiring}},
	}
	rows := compliance.BuildInbox(items, 0)
	gt.Equal(t, rows[0].Employee.ID, "a")

	items[0].ValidTo = datePtr(2024, time.June, 9)
	rows = compliance.BuildInbox(items, 0)
	gt.Equal(t, rows[0].Employee.ID, "b")
}

func TestSetAssignment(t *testing.T) {
	svc, store, recorder := newFixture()
	meta := audit.Meta{TenantID: "t1", ActorID: "u1", RequestID: "req-1"}

	_, _, err := svc.SetAssignment(context.Background(), meta, compliance.Assignment{EmployeeID: "e4", RequirementID: "med1", Waived: true})
	gt.True(t, errors.Is(err, compliance.ErrWaiverReasonRequired))

	saved, result, err := svc.SetAssignment(context.Background(), meta, compliance.Assignment{
		EmployeeID:     "e4",
		RequirementID:  "med1",
		ValidTo:        datePtr(2024, time.June, 15),
		DocumentNumber: " MED-77 ",
	})
	gt.NoError(t, err)
	gt.Equal(t, saved.DocumentNumber, "MED-77")
	gt.Equal(t, result.Status, compliance.StatusExpiring)
	gt.Equal(t, len(store.assignments), 6)

	gt.Equal(t, len(recorder.entries), 1)
	gt.Equal(t, recorder.entries[0].Action, audit.ActionCreate)
	after := recorder.entries[0].After.(compliance.Assignment)
	gt.Equal(t, after.DocumentNumber, "***")

	_, _, err = svc.SetAssignment(context.Background(), meta, compliance.Assignment{EmployeeID: "e4", RequirementID: "med1", Waived: true, WaiverReason: "on leave"})
	gt.NoError(t, err)
	gt.Equal(t, recorder.entries[1].Action, audit.ActionUpdate)

	_, _, err = svc.SetAssignment(context.Background(), meta, compliance.Assignment{EmployeeID: "e4", RequirementID: "nope"})
	gt.True(t, errors.Is(err, compliance.ErrRequirementNotFound))
}

func TestImportAssignments(t *testing.T) {
	svc, store, recorder := newFixture()
	meta := audit.Meta{TenantID: "t1", ActorID: "u1"}

	body := strings.Join([]string{
		"employee_number,requirement_code,valid_to,waived,waiver_reason",
		"400,MED1,2025-03-01,,",
		"400,LIC1,2024-13-01,,",
		"999,MED1,2025-01-01,,",
		"300,med1,,yes,night shift exemption",
	}, "\n")

	res, err := svc.ImportAssignments(context.Background(), meta, strings.NewReader(body))
	gt.NoError(t, err)
	gt.Equal(t, res.Imported, 2)
	gt.Equal(t, res.Rejected, 2)
	gt.Equal(t, len(res.Errors), 2)
	gt.Equal(t, res.Errors[0].Row, 3)
	gt.Equal(t, res.Errors[0].Field, "valid_to")
	gt.NotEqual(t, res.BatchID, "")

	a, ok, _ := store.GetAssignment(context.Background(), "t1", "e3", "med1")
	gt.True(t, ok)
	gt.True(t, a.Waived)
	gt.True(t, a.ValidTo == nil)

	gt.Equal(t, recorder.entries[len(recorder.entries)-1].Action, audit.ActionImport)
}

func TestImportAssignmentsRollsBackOnStoreFailure(t *testing.T) {
	svc, store, recorder := newFixture()
	store.upsertFailAt = 2
	meta := audit.Meta{TenantID: "t1", ActorID: "u1"}
	before := len(store.assignments)

	body := strings.Join([]string{
		"employee_number,requirement_code,valid_to,waived,waiver_reason",
		"400,MED1,2025-03-01,,",
		"400,LIC1,2025-03-01,,",
		"300,LIC1,2025-04-01,,",
	}, "\n")

	res, err := svc.ImportAssignments(context.Background(), meta, strings.NewReader(body))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, compliance.ErrImportFailed))
	gt.Equal(t, res.Imported, 0)
	gt.NotEqual(t, res.BatchID, "")
	gt.Equal(t, len(store.assignments), before)

	_, ok, _ := store.GetAssignment(context.Background(), "t1", "e4", "med1")
	gt.False(t, ok)

	gt.Equal(t, len(recorder.entries), 1)
	entry := recorder.entries[0]
	gt.Equal(t, entry.Action, audit.ActionImport)
	gt.Equal(t, entry.EntityID, res.BatchID)
}

func TestCreateRequirement(t *testing.T) {
	svc, store, _ := newFixture()
	meta := audit.Meta{TenantID: "t1", ActorID: "u1"}

	created, err := svc.CreateRequirement(context.Background(), meta, compliance.Requirement{Code: " gmp2 ", Category: "Medical"}, []compliance.Applicability{
		{AppliesToLine: " A "},
		{},
	})
	gt.NoError(t, err)
	gt.Equal(t, created.Code, "GMP2")
	gt.Equal(t, created.Name, "GMP2")
	gt.Equal(t, created.Criticality, compliance.CriticalityNormal)
	gt.True(t, created.Active)
	gt.Equal(t, len(created.Applicability), 1)
	gt.Equal(t, created.Applicability[0].AppliesToLine, "A")
	gt.Equal(t, len(store.rules), 3)

	_, err = svc.CreateRequirement(context.Background(), meta, compliance.Requirement{Code: "X", Criticality: "urgent"}, nil)
	gt.True(t, errors.Is(err, compliance.ErrInvalidRequirement))

	store.createErr = compliance.ErrDuplicateCode
	_, err = svc.CreateRequirement(context.Background(), meta, compliance.Requirement{Code: "LIC1"}, nil)
	gt.True(t, errors.Is(err, compliance.ErrDuplicateCode))
}

func TestDeactivateRequirementRemovesItFromEvaluation(t *testing.T) {
	svc, _, recorder := newFixture()
	meta := audit.Meta{TenantID: "t1", ActorID: "u1"}

	_, err := svc.UpdateRequirement(context.Background(), meta, compliance.Requirement{ID: "lic1", Code: "LIC1", Name: "Forklift license", Category: compliance.CategoryLicense, Criticality: compliance.CriticalityBlocking, Active: false})
	gt.NoError(t, err)
	gt.Equal(t, recorder.entries[0].Action, audit.ActionDeactivate)

	st, err := svc.EmployeeStatus(context.Background(), "t1", "e1", compliance.Options{})
	gt.NoError(t, err)
	gt.Equal(t, len(st.Items), 1)
	gt.Equal(t, st.Primary, compliance.StatusExpiring)
}

func TestReplaceApplicability(t *testing.T) {
	svc, store, _ := newFixture()
	meta := audit.Meta{TenantID: "t1", ActorID: "u1"}

	rows, err := svc.ReplaceApplicability(context.Background(), meta, "ctr1", []compliance.Applicability{{AppliesGlobally: true}})
	gt.NoError(t, err)
	gt.Equal(t, len(rows), 1)

	m, err := svc.Matrix(context.Background(), "t1", compliance.Scope{}, compliance.Options{})
	gt.NoError(t, err)
	gt.Equal(t, len(m.Items), 10)
	gt.Equal(t, len(store.rules), 2)

	_, err = svc.ReplaceApplicability(context.Background(), meta, "missing", nil)
	gt.True(t, errors.Is(err, compliance.ErrRequirementNotFound))
}

func TestBlockingIssues(t *testing.T) {
	svc, _, _ := newFixture()

	issues, err := svc.BlockingIssues(context.Background(), "t1", "e1", date(2024, time.June, 1))
	gt.NoError(t, err)
	gt.Equal(t, len(issues), 1)
	gt.Equal(t, issues[0].Requirement.Code, "LIC1")

	issues, err = svc.BlockingIssues(context.Background(), "t1", "e2", date(2024, time.June, 1))
	gt.NoError(t, err)
	gt.Equal(t, len(issues), 0)

	blocked, err := svc.BlockedEmployees(context.Background(), "t1", compliance.Scope{}, date(2024, time.June, 1))
	gt.NoError(t, err)
	gt.True(t, blocked["e1"])
	gt.False(t, blocked["e2"])
}

func TestSweep(t *testing.T) {
	svc, store, _ := newFixture()
	reminders := &fakeReminders{}

	res, err := svc.Sweep(context.Background(), "t1", reminders)
	gt.NoError(t, err)
	gt.Equal(t, res.Overdue, 1)
	gt.Equal(t, res.Expiring, 2)
	gt.Equal(t, res.Outstanding, 4)
	gt.Equal(t, res.Reminded, 3)
	gt.Equal(t, reminders.items[0].Result.Status, compliance.StatusOverdue)

	snap, ok := store.snapshots["2024-06-01"]
	gt.True(t, ok)
	gt.Equal(t, snap.Items, 6)
}
