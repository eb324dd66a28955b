package employees

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/auth"
)

var ErrForbidden = goerr.New("employee not visible to caller")

type StoreAPI interface {
	Get(ctx context.Context, tenantID, employeeID string) (Employee, error)
	Count(ctx context.Context, tenantID string, filter Filter) (int, error)
	List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]Employee, error)
	Create(ctx context.Context, tenantID string, emp Employee) (string, error)
	Update(ctx context.Context, tenantID, employeeID string, emp Employee) error
}

type Service struct {
	Store StoreAPI
	Audit audit.Recorder
}

func NewService(store StoreAPI, recorder audit.Recorder) *Service {
	return &Service{Store: store, Audit: recorder}
}

func (s *Service) Get(ctx context.Context, user auth.UserContext, employeeID string) (Employee, error) {
	emp, err := s.Store.Get(ctx, user.TenantID, employeeID)
	if err != nil {
		return Employee{}, err
	}
	if !CanView(user, emp) {
		return Employee{}, ErrForbidden
	}
	Redact(&emp, user)
	return emp, nil
}

func (s *Service) List(ctx context.Context, user auth.UserContext, filter Filter, limit, offset int) ([]Employee, int, error) {
	filter = ScopeFilter(user, filter)
	total, err := s.Store.Count(ctx, user.TenantID, filter)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count employees")
	}
	list, err := s.Store.List(ctx, user.TenantID, filter, limit, offset)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list employees")
	}
	for i := range list {
		Redact(&list[i], user)
	}
	return list, total, nil
}

// ListAll returns every employee matching filter without visibility scoping. It serves
// background jobs and org-wide reports.
func (s *Service) ListAll(ctx context.Context, tenantID string, filter Filter) ([]Employee, error) {
	return s.Store.List(ctx, tenantID, filter, 0, 0)
}

func (s *Service) Create(ctx context.Context, meta audit.Meta, emp Employee) (Employee, error) {
	Normalize(&emp)
	id, err := s.Store.Create(ctx, meta.TenantID, emp)
	if err != nil {
		return Employee{}, err
	}
	emp.ID = id
	s.record(ctx, meta.Entry(audit.ActionCreate, "employee", id, nil, emp))
	return emp, nil
}

func (s *Service) Update(ctx context.Context, meta audit.Meta, employeeID string, emp Employee) (Employee, error) {
	before, err := s.Store.Get(ctx, meta.TenantID, employeeID)
	if err != nil {
		return Employee{}, err
	}
	Normalize(&emp)
	if err := s.Store.Update(ctx, meta.TenantID, employeeID, emp); err != nil {
		return Employee{}, err
	}
	emp.ID = employeeID
	emp.CreatedAt = before.CreatedAt
	s.record(ctx, meta.Entry(audit.ActionUpdate, "employee", employeeID, before, emp))
	return emp, nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		ctxlog.From(ctx).Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}

// Normalize trims labels and applies the default status.
func Normalize(emp *Employee) {
	emp.EmployeeNumber = strings.TrimSpace(emp.EmployeeNumber)
	emp.FirstName = strings.TrimSpace(emp.FirstName)
	emp.LastName = strings.TrimSpace(emp.LastName)
	emp.Email = strings.TrimSpace(emp.Email)
	emp.Line = strings.TrimSpace(emp.Line)
	emp.PrimaryRoleCode = strings.ToUpper(strings.TrimSpace(emp.PrimaryRoleCode))
	emp.SiteID = strings.TrimSpace(emp.SiteID)
	emp.Status = strings.ToLower(strings.TrimSpace(emp.Status))
	if emp.Status == "" {
		emp.Status = StatusActive
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
