package checklists

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/audit"
	"workforce/internal/domain/compliance"
)

type StoreAPI interface {
	CreateTemplate(ctx context.Context, tenantID string, t Template) (Template, error)
	ListTemplates(ctx context.Context, tenantID string) ([]Template, error)
	GetTemplate(ctx context.Context, tenantID, templateID string) (Template, error)
	CreateChecklist(ctx context.Context, tenantID string, c Checklist) (Checklist, error)
	ListForEmployee(ctx context.Context, tenantID, employeeID string) ([]Checklist, error)
	GetChecklist(ctx context.Context, tenantID, checklistID string) (Checklist, error)
	CompleteItem(ctx context.Context, tenantID, checklistID, itemID, userID string) error
	OpenCounts(ctx context.Context, tenantID string, asOf compliance.Date) (OpenCounts, error)
}

// Notifier tells an employee about a checklist assigned to them.
type Notifier interface {
	NotifyChecklistAssigned(ctx context.Context, tenantID, employeeID, checklistID, name string) error
}

type Service struct {
	Store    StoreAPI
	Audit    audit.Recorder
	Notifier Notifier
	Location *time.Location
	Now      func() time.Time
}

func NewService(store StoreAPI, recorder audit.Recorder, notifier Notifier, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{Store: store, Audit: recorder, Notifier: notifier, Location: loc, Now: time.Now}
}

func (s *Service) today() compliance.Date {
	return compliance.Today(s.Now(), s.Location)
}

func (s *Service) CreateTemplate(ctx context.Context, meta audit.Meta, t Template) (Template, error) {
	t, err := NormalizeTemplate(t)
	if err != nil {
		return Template{}, err
	}
	created, err := s.Store.CreateTemplate(ctx, meta.TenantID, t)
	if err != nil {
		return Template{}, err
	}
	s.record(ctx, meta.Entry(audit.ActionCreate, "checklist_template", created.ID, nil, created))
	return created, nil
}

func (s *Service) ListTemplates(ctx context.Context, tenantID string) ([]Template, error) {
	return s.Store.ListTemplates(ctx, tenantID)
}

// Assign instantiates a template for an employee. A nil start uses today in the org timezone.
func (s *Service) Assign(ctx context.Context, meta audit.Meta, templateID, employeeID string, start *compliance.Date) (Checklist, error) {
	tpl, err := s.Store.GetTemplate(ctx, meta.TenantID, templateID)
	if err != nil {
		return Checklist{}, err
	}
	startDate := s.today()
	if start != nil {
		startDate = *start
	}
	created, err := s.Store.CreateChecklist(ctx, meta.TenantID, Instantiate(tpl, employeeID, startDate))
	if err != nil {
		return Checklist{}, err
	}
	created.Annotate(s.today())
	s.record(ctx, meta.Entry(audit.ActionCreate, "checklist", created.ID, nil, map[string]any{
		"templateId": templateID,
		"employeeId": employeeID,
		"startDate":  startDate.String(),
	}))
	if s.Notifier != nil {
		if err := s.Notifier.NotifyChecklistAssigned(ctx, meta.TenantID, employeeID, created.ID, created.Name); err != nil {
			ctxlog.From(ctx).Warn("checklist notification failed", "checklistId", created.ID, "err", err)
		}
	}
	return created, nil
}

func (s *Service) ListForEmployee(ctx context.Context, tenantID, employeeID string) ([]Checklist, error) {
	list, err := s.Store.ListForEmployee(ctx, tenantID, employeeID)
	if err != nil {
		return nil, err
	}
	asOf := s.today()
	for i := range list {
		list[i].Annotate(asOf)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, tenantID, checklistID string) (Checklist, error) {
	c, err := s.Store.GetChecklist(ctx, tenantID, checklistID)
	if err != nil {
		return Checklist{}, err
	}
	c.Annotate(s.today())
	return c, nil
}

// CompleteItem marks one item done and returns the refreshed checklist.
func (s *Service) CompleteItem(ctx context.Context, meta audit.Meta, checklistID, itemID string) (Checklist, error) {
	if err := s.Store.CompleteItem(ctx, meta.TenantID, checklistID, itemID, meta.ActorID); err != nil {
		return Checklist{}, err
	}
	c, err := s.Get(ctx, meta.TenantID, checklistID)
	if err != nil {
		return Checklist{}, err
	}
	s.record(ctx, meta.Entry(audit.ActionComplete, "checklist_item", itemID, nil, map[string]any{
		"checklistId": checklistID,
		"progress":    c.Progress,
	}))
	return c, nil
}

func (s *Service) OpenCounts(ctx context.Context, tenantID string) (OpenCounts, error) {
	return s.Store.OpenCounts(ctx, tenantID, s.today())
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		ctxlog.From(ctx).Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}
