package compliance

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/audit"
)

var ErrWaiverReasonRequired = goerr.New("waiver reason is required")

// SetAssignment records the evidence for one (employee, requirement) pair and returns it
// with its classification as of today.
func (s *Service) SetAssignment(ctx context.Context, meta audit.Meta, a Assignment) (Assignment, Result, error) {
	a.WaiverReason = strings.TrimSpace(a.WaiverReason)
	a.DocumentNumber = strings.TrimSpace(a.DocumentNumber)
	if a.Waived && a.WaiverReason == "" {
		return Assignment{}, Result{}, ErrWaiverReasonRequired
	}
	if a.ValidTo != nil && a.ValidTo.IsZero() {
		return Assignment{}, Result{}, ErrInvalidDate
	}
	if _, err := s.Store.GetSubject(ctx, meta.TenantID, a.EmployeeID); err != nil {
		return Assignment{}, Result{}, err
	}
	req, err := s.Store.GetRequirement(ctx, meta.TenantID, a.RequirementID)
	if err != nil {
		return Assignment{}, Result{}, err
	}

	before, existed, err := s.Store.GetAssignment(ctx, meta.TenantID, a.EmployeeID, a.RequirementID)
	if err != nil {
		return Assignment{}, Result{}, err
	}
	saved, err := s.Store.UpsertAssignment(ctx, meta.TenantID, a)
	if err != nil {
		return Assignment{}, Result{}, err
	}

	var beforeValue any
	action := audit.ActionCreate
	if existed {
		beforeValue = redactAssignment(before)
		action = audit.ActionUpdate
	}
	s.record(ctx, meta.Entry(action, entityAssignment, saved.ID, beforeValue, redactAssignment(saved)))

	window := Window{Default: s.DefaultWindow}.For(req)
	return saved, Classify(saved.ValidTo, saved.Waived, s.Today(), window), nil
}

// redactAssignment keeps document numbers out of audit payloads.
func redactAssignment(a Assignment) Assignment {
	if a.DocumentNumber != "" {
		a.DocumentNumber = "***"
	}
	return a
}

// ImportResult summarises a CSV import.
type ImportResult struct {
	BatchID  string     `json:"batchId"`
	Imported int        `json:"imported"`
	Rejected int        `json:"rejected"`
	Errors   []RowError `json:"errors"`
}

// ImportAssignments applies every valid row of a CSV file and reports the rejected ones.
func (s *Service) ImportAssignments(ctx context.Context, meta audit.Meta, r io.Reader) (ImportResult, error) {
	subjects, err := s.Store.ListSubjects(ctx, meta.TenantID, Scope{IncludeInactive: true})
	if err != nil {
		return ImportResult{}, err
	}
	reqs, err := s.Store.ListRequirements(ctx, meta.TenantID, true)
	if err != nil {
		return ImportResult{}, err
	}

	rows, rowErrors, err := ParseAssignmentsCSV(r, NewImportLookup(subjects, reqs))
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{BatchID: uuid.NewString(), Errors: rowErrors}
	if result.Errors == nil {
		result.Errors = []RowError{}
	}
	result.Rejected = rejectedRows(rowErrors)

	saved, err := s.Store.UpsertAssignments(ctx, meta.TenantID, rows)
	if err != nil {
		s.record(ctx, meta.Entry(audit.ActionImport, entityAssignment, result.BatchID, nil, map[string]any{
			"imported":   0,
			"rejected":   result.Rejected,
			"rolledBack": len(rows),
		}))
		return result, goerr.Wrap(errors.Join(ErrImportFailed, err), "import aborted", goerr.V("batchId", result.BatchID))
	}
	result.Imported = len(saved)

	s.record(ctx, meta.Entry(audit.ActionImport, entityAssignment, result.BatchID, nil, map[string]any{
		"imported": result.Imported,
		"rejected": result.Rejected,
	}))
	return result, nil
}

func rejectedRows(errs []RowError) int {
	seen := map[int]struct{}{}
	for _, e := range errs {
		seen[e.Row] = struct{}{}
	}
	return len(seen)
}

// BlockingIssues returns the employee's blocking-criticality items that are overdue or
// missing on asOf. A non-empty result bars the employee from being rostered.
func (s *Service) BlockingIssues(ctx context.Context, tenantID, employeeID string, asOf Date) ([]Item, error) {
	st, err := s.EmployeeStatus(ctx, tenantID, employeeID, Options{AsOf: &asOf})
	if err != nil {
		return nil, err
	}
	return BlockingItems(st.Items), nil
}

func BlockingItems(items []Item) []Item {
	var out []Item
	for _, item := range items {
		if item.Requirement.Criticality != CriticalityBlocking {
			continue
		}
		if item.Result.Status == StatusOverdue || item.Result.Status == StatusMissing {
			out = append(out, item)
		}
	}
	return out
}

// BlockedEmployees evaluates the scope on asOf and returns the ids of employees with at
// least one blocking issue.
func (s *Service) BlockedEmployees(ctx context.Context, tenantID string, scope Scope, asOf Date) (map[string]bool, error) {
	m, err := s.matrix(ctx, tenantID, scope, asOf, Window{Default: s.DefaultWindow})
	if err != nil {
		return nil, err
	}
	blocked := map[string]bool{}
	for _, item := range BlockingItems(m.Items) {
		blocked[item.Employee.ID] = true
	}
	return blocked, nil
}
