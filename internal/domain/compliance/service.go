package compliance

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/audit"
)

// Scope selects the employees an evaluation covers. Empty fields match everything.
type Scope struct {
	SiteID          string
	Line            string
	ManagerID       string
	EmployeeID      string
	TeamOf          string
	IncludeInactive bool
}

// Options carries the per-request evaluation parameters.
type Options struct {
	AsOf   *Date
	Window *int
	// Statuses keeps matrix items in these buckets and inbox rows whose primary bucket is one of them.
	Statuses []Status
}

type StoreAPI interface {
	ListRequirements(ctx context.Context, tenantID string, includeInactive bool) ([]Requirement, error)
	GetRequirement(ctx context.Context, tenantID, requirementID string) (Requirement, error)
	CreateRequirement(ctx context.Context, tenantID string, req Requirement) (Requirement, error)
	UpdateRequirement(ctx context.Context, tenantID string, req Requirement) (Requirement, error)
	ListApplicability(ctx context.Context, tenantID string) ([]Applicability, error)
	ReplaceApplicability(ctx context.Context, tenantID, requirementID string, rows []Applicability) error
	ListSubjects(ctx context.Context, tenantID string, scope Scope) ([]Employee, error)
	GetSubject(ctx context.Context, tenantID, employeeID string) (Employee, error)
	ListAssignments(ctx context.Context, tenantID string, scope Scope) ([]Assignment, error)
	GetAssignment(ctx context.Context, tenantID, employeeID, requirementID string) (Assignment, bool, error)
	UpsertAssignment(ctx context.Context, tenantID string, a Assignment) (Assignment, error)
	UpsertAssignments(ctx context.Context, tenantID string, rows []Assignment) ([]Assignment, error)
	SaveSnapshot(ctx context.Context, tenantID string, asOf Date, summary Summary) error
	ListSnapshots(ctx context.Context, tenantID string, limit int) ([]Snapshot, error)
}

type Service struct {
	Store         StoreAPI
	Audit         audit.Recorder
	Location      *time.Location
	DefaultWindow int
	TopN          int
	Now           func() time.Time
}

func NewService(store StoreAPI, recorder audit.Recorder, loc *time.Location, defaultWindow, topN int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		Store:         store,
		Audit:         recorder,
		Location:      loc,
		DefaultWindow: defaultWindow,
		TopN:          topN,
		Now:           time.Now,
	}
}

// Today is the current date in the organization's timezone.
func (s *Service) Today() Date {
	return Today(s.Now(), s.Location)
}

func (s *Service) resolve(opts Options) (Date, Window, error) {
	asOf := s.Today()
	if opts.AsOf != nil {
		if opts.AsOf.IsZero() {
			return Date{}, Window{}, ErrInvalidDate
		}
		asOf = *opts.AsOf
	}
	if opts.Window != nil && *opts.Window < 0 {
		return Date{}, Window{}, goerr.Wrap(ErrInvalidWarningWindow, "resolve window", goerr.V("window", *opts.Window))
	}
	return asOf, Window{Override: opts.Window, Default: s.DefaultWindow}, nil
}

type catalog struct {
	requirements []Requirement
	rules        ApplicabilityIndex
}

func (s *Service) loadCatalog(ctx context.Context, tenantID string) (catalog, error) {
	reqs, err := s.Store.ListRequirements(ctx, tenantID, false)
	if err != nil {
		return catalog{}, err
	}
	rows, err := s.Store.ListApplicability(ctx, tenantID)
	if err != nil {
		return catalog{}, err
	}
	return catalog{requirements: reqs, rules: IndexApplicability(rows)}, nil
}

// EmployeeStatus is one employee's classified requirements.
type EmployeeStatus struct {
	Employee Employee `json:"employee"`
	AsOf     Date     `json:"asOf"`
	Primary  Status   `json:"primary"`
	Blocker  *Item    `json:"blocker,omitempty"`
	Counts   Counts   `json:"counts"`
	Items    []Item   `json:"items"`
}

func (s *Service) EmployeeStatus(ctx context.Context, tenantID, employeeID string, opts Options) (EmployeeStatus, error) {
	asOf, window, err := s.resolve(opts)
	if err != nil {
		return EmployeeStatus{}, err
	}
	emp, err := s.Store.GetSubject(ctx, tenantID, employeeID)
	if err != nil {
		return EmployeeStatus{}, err
	}
	cat, err := s.loadCatalog(ctx, tenantID)
	if err != nil {
		return EmployeeStatus{}, err
	}
	assignments, err := s.Store.ListAssignments(ctx, tenantID, Scope{EmployeeID: employeeID, IncludeInactive: true})
	if err != nil {
		return EmployeeStatus{}, err
	}

	items := Evaluate(emp, cat.requirements, cat.rules, DedupeAssignments(assignments), asOf, window)
	SortByUrgency(items)
	return buildEmployeeStatus(emp, asOf, items), nil
}

func buildEmployeeStatus(emp Employee, asOf Date, items []Item) EmployeeStatus {
	status := EmployeeStatus{Employee: emp, AsOf: asOf, Items: items}
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = item.Result
		status.Counts.Add(item.Result.Status)
	}
	status.Primary = PrimaryBucket(results)
	if blocker, ok := PrimaryBlocker(items); ok {
		status.Blocker = &blocker
	}
	return status
}

// Matrix is every classified (employee, requirement) pair in a scope.
type Matrix struct {
	AsOf         Date          `json:"asOf"`
	Requirements []Requirement `json:"requirements"`
	Employees    []Employee    `json:"employees"`
	Items        []Item        `json:"items"`
}

// Cell returns the item for one employee and requirement.
func (m Matrix) Cell(employeeID, requirementID string) (Item, bool) {
	for _, item := range m.Items {
		if item.Employee.ID == employeeID && item.Requirement.ID == requirementID {
			return item, true
		}
	}
	return Item{}, false
}

func (s *Service) Matrix(ctx context.Context, tenantID string, scope Scope, opts Options) (Matrix, error) {
	asOf, window, err := s.resolve(opts)
	if err != nil {
		return Matrix{}, err
	}
	m, err := s.matrix(ctx, tenantID, scope, asOf, window)
	if err != nil {
		return Matrix{}, err
	}
	if len(opts.Statuses) > 0 {
		kept := m.Items[:0]
		for _, item := range m.Items {
			if hasStatus(opts.Statuses, item.Result.Status) {
				kept = append(kept, item)
			}
		}
		m.Items = kept
	}
	return m, nil
}

func hasStatus(statuses []Status, status Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Service) matrix(ctx context.Context, tenantID string, scope Scope, asOf Date, window Window) (Matrix, error) {
	cat, err := s.loadCatalog(ctx, tenantID)
	if err != nil {
		return Matrix{}, err
	}
	subjects, err := s.Store.ListSubjects(ctx, tenantID, scope)
	if err != nil {
		return Matrix{}, err
	}
	assignments, err := s.Store.ListAssignments(ctx, tenantID, scope)
	if err != nil {
		return Matrix{}, err
	}
	assignments = DedupeAssignments(assignments)

	m := Matrix{AsOf: asOf, Requirements: cat.requirements, Employees: subjects}
	for _, emp := range subjects {
		m.Items = append(m.Items, Evaluate(emp, cat.requirements, cat.rules, assignments, asOf, window)...)
	}
	return m, nil
}

// OrgSummary is the KPI rollup with a category ranking and a requirement ranking.
type OrgSummary struct {
	AsOf            Date    `json:"asOf"`
	Window          *int    `json:"window,omitempty"`
	Summary         Summary `json:"summary"`
	TopRequirements []Risk  `json:"topRequirements"`
}

// OrgSummary ranks the top categories and requirements. A topN of zero uses the service default.
func (s *Service) OrgSummary(ctx context.Context, tenantID string, scope Scope, opts Options, topN int) (OrgSummary, error) {
	if topN == 0 {
		topN = s.TopN
	}
	m, err := s.Matrix(ctx, tenantID, scope, opts)
	if err != nil {
		return OrgSummary{}, err
	}
	return OrgSummary{
		AsOf:            m.AsOf,
		Window:          opts.Window,
		Summary:         Aggregate(m.Items, topN),
		TopRequirements: RankRisks(m.Items, GroupByRequirement, topN),
	}, nil
}

// InboxRow is one employee needing attention.
type InboxRow struct {
	Employee    Employee `json:"employee"`
	Primary     Status   `json:"primary"`
	Blocker     Item     `json:"blocker"`
	Outstanding int      `json:"outstanding"`
}

// Inbox lists employees with anything outstanding, most severe bucket first, then by the
// blocker's date. A limit of zero or less returns every row.
func (s *Service) Inbox(ctx context.Context, tenantID string, scope Scope, opts Options, limit int) ([]InboxRow, Date, error) {
	asOf, window, err := s.resolve(opts)
	if err != nil {
		return nil, Date{}, err
	}
	m, err := s.matrix(ctx, tenantID, scope, asOf, window)
	if err != nil {
		return nil, Date{}, err
	}
	if len(opts.Statuses) == 0 {
		return BuildInbox(m.Items, limit), m.AsOf, nil
	}
	rows := BuildInbox(m.Items, 0)
	kept := rows[:0]
	for _, row := range rows {
		if hasStatus(opts.Statuses, row.Primary) {
			kept = append(kept, row)
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, m.AsOf, nil
}

// BuildInbox groups items per employee and keeps the employees with outstanding work.
func BuildInbox(items []Item, limit int) []InboxRow {
	perEmployee := map[string][]Item{}
	var order []string
	for _, item := range items {
		if _, ok := perEmployee[item.Employee.ID]; !ok {
			order = append(order, item.Employee.ID)
		}
		perEmployee[item.Employee.ID] = append(perEmployee[item.Employee.ID], item)
	}

	rows := make([]InboxRow, 0, len(order))
	for _, id := range order {
		empItems := perEmployee[id]
		blocker, ok := PrimaryBlocker(empItems)
		if !ok {
			continue
		}
		var counts Counts
		for _, item := range empItems {
			counts.Add(item.Result.Status)
		}
		rows = append(rows, InboxRow{
			Employee:    empItems[0].Employee,
			Primary:     blocker.Result.Status,
			Blocker:     blocker,
			Outstanding: counts.Outstanding(),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Primary != b.Primary {
			return a.Primary.severity() > b.Primary.severity()
		}
		if less, decided := earlierDate(a.Blocker.ValidTo, b.Blocker.ValidTo); decided {
			return less
		}
		if a.Employee.Name != b.Employee.Name {
			return a.Employee.Name < b.Employee.Name
		}
		return a.Employee.ID < b.Employee.ID
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// earlierDate orders dated before undated and earlier before later. decided is false on a tie.
func earlierDate(a, b *Date) (less bool, decided bool) {
	switch {
	case a != nil && b != nil:
		if a.Equal(*b) {
			return false, false
		}
		return a.Before(*b), true
	case a != nil:
		return true, true
	case b != nil:
		return false, true
	}
	return false, false
}
