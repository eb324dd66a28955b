package roster

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/auth"
	"workforce/internal/domain/compliance"
)

type StoreAPI interface {
	CreateShift(ctx context.Context, tenantID string, shift Shift) (Shift, error)
	GetShift(ctx context.Context, tenantID, shiftID string) (Shift, error)
	ListShifts(ctx context.Context, tenantID string, filter ShiftFilter) ([]Shift, error)
	ListAssignments(ctx context.Context, tenantID, shiftID string) ([]Assignment, error)
	CreateAssignment(ctx context.Context, tenantID string, a Assignment) (Assignment, error)
}

// ComplianceChecker is the part of the compliance service the roster relies on.
type ComplianceChecker interface {
	BlockingIssues(ctx context.Context, tenantID, employeeID string, asOf compliance.Date) ([]compliance.Item, error)
	BlockedEmployees(ctx context.Context, tenantID string, scope compliance.Scope, asOf compliance.Date) (map[string]bool, error)
}

// Notifier tells HR about overridden compliance blocks.
type Notifier interface {
	NotifyForcedAssignment(ctx context.Context, tenantID, shiftID, employeeID, reason string, overridden []string) error
}

type Service struct {
	Store      StoreAPI
	Compliance ComplianceChecker
	Audit      audit.Recorder
	Notifier   Notifier
	Location   *time.Location
}

func NewService(store StoreAPI, checker ComplianceChecker, recorder audit.Recorder, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{Store: store, Compliance: checker, Audit: recorder, Location: loc}
}

func (s *Service) CreateShift(ctx context.Context, meta audit.Meta, shift Shift) (Shift, error) {
	shift.SiteID = strings.TrimSpace(shift.SiteID)
	shift.Line = strings.TrimSpace(shift.Line)
	shift.RequiredRole = strings.ToUpper(strings.TrimSpace(shift.RequiredRole))
	if !shift.EndsAt.After(shift.StartsAt) {
		return Shift{}, ErrInvalidShiftWindow
	}
	created, err := s.Store.CreateShift(ctx, meta.TenantID, shift)
	if err != nil {
		return Shift{}, err
	}
	s.record(ctx, meta.Entry(audit.ActionCreate, "shift", created.ID, nil, created))
	return created, nil
}

func (s *Service) ListShifts(ctx context.Context, tenantID string, filter ShiftFilter) ([]Shift, error) {
	return s.Store.ListShifts(ctx, tenantID, filter)
}

func (s *Service) GetShift(ctx context.Context, tenantID, shiftID string) (Shift, []Assignment, error) {
	shift, err := s.Store.GetShift(ctx, tenantID, shiftID)
	if err != nil {
		return Shift{}, nil, err
	}
	assignments, err := s.Store.ListAssignments(ctx, tenantID, shiftID)
	if err != nil {
		return Shift{}, nil, err
	}
	return shift, assignments, nil
}

// Assign evaluates the employee's compliance as of the shift date and refuses the assignment
// when a blocking requirement is overdue or missing. HR may force it with a reason; forced
// assignments are audited with the items that were overridden.
func (s *Service) Assign(ctx context.Context, meta audit.Meta, actor auth.UserContext, shiftID string, req AssignRequest) (Assignment, error) {
	if req.Force && !actor.IsHR() {
		return Assignment{}, ErrForceNotAllowed
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Force && req.Reason == "" {
		return Assignment{}, ErrForceReason
	}

	shift, err := s.Store.GetShift(ctx, meta.TenantID, shiftID)
	if err != nil {
		return Assignment{}, err
	}
	shiftDate := compliance.DateOf(shift.StartsAt, s.Location)
	issues, err := s.Compliance.BlockingIssues(ctx, meta.TenantID, req.EmployeeID, shiftDate)
	if err != nil {
		return Assignment{}, err
	}
	if len(issues) > 0 && !req.Force {
		return Assignment{}, &BlockedError{EmployeeID: req.EmployeeID, Items: issues}
	}

	a := Assignment{ShiftID: shift.ID, EmployeeID: req.EmployeeID}
	if len(issues) > 0 {
		a.Forced = true
		a.ForceReason = req.Reason
	}
	created, err := s.Store.CreateAssignment(ctx, meta.TenantID, a)
	if err != nil {
		return Assignment{}, err
	}

	if created.Forced {
		codes := make([]string, 0, len(issues))
		for _, item := range issues {
			codes = append(codes, item.Requirement.Code+":"+string(item.Result.Status))
		}
		s.record(ctx, meta.Entry(audit.ActionForceAssign, "shift_assignment", created.ID, nil, map[string]any{
			"shiftId":    shift.ID,
			"employeeId": req.EmployeeID,
			"reason":     req.Reason,
			"overridden": codes,
		}))
		ctxlog.From(ctx).Warn("compliance block overridden", "shiftId", shift.ID, "employeeId", req.EmployeeID, "actorId", meta.ActorID)
		if s.Notifier != nil {
			if err := s.Notifier.NotifyForcedAssignment(ctx, meta.TenantID, shift.ID, req.EmployeeID, req.Reason, codes); err != nil {
				ctxlog.From(ctx).Warn("override notification failed", "shiftId", shift.ID, "err", err)
			}
		}
	} else {
		s.record(ctx, meta.Entry(audit.ActionAssign, "shift_assignment", created.ID, nil, created))
	}
	return created, nil
}

// UpcomingShift is a shift with the number of assigned staff who would be blocked on its date.
type UpcomingShift struct {
	Shift
	BlockedStaff int `json:"blockedStaff"`
}

// Upcoming lists shifts starting within days of now and counts blocked staff per shift.
func (s *Service) Upcoming(ctx context.Context, tenantID string, now time.Time, days int) ([]UpcomingShift, error) {
	shifts, err := s.Store.ListShifts(ctx, tenantID, ShiftFilter{From: now, To: now.AddDate(0, 0, days)})
	if err != nil {
		return nil, err
	}
	blockedByDate := map[string]map[string]bool{}
	out := make([]UpcomingShift, 0, len(shifts))
	for _, shift := range shifts {
		entry := UpcomingShift{Shift: shift}
		if shift.Assigned > 0 {
			day := compliance.DateOf(shift.StartsAt, s.Location)
			blocked, ok := blockedByDate[day.String()]
			if !ok {
				blocked, err = s.Compliance.BlockedEmployees(ctx, tenantID, compliance.Scope{}, day)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to evaluate shift staff", goerr.V("shiftId", shift.ID))
				}
				blockedByDate[day.String()] = blocked
			}
			assignments, err := s.Store.ListAssignments(ctx, tenantID, shift.ID)
			if err != nil {
				return nil, err
			}
			for _, a := range assignments {
				if blocked[a.EmployeeID] {
					entry.BlockedStaff++
				}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		ctxlog.From(ctx).Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}
