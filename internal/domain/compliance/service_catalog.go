package compliance

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/audit"
)

const (
	entityRequirement = "compliance_requirement"
	entityAssignment  = "employee_compliance"
)

var ErrInvalidRequirement = goerr.New("invalid requirement")

func (s *Service) ListRequirements(ctx context.Context, tenantID string, includeInactive bool) ([]Requirement, error) {
	return s.Store.ListRequirements(ctx, tenantID, includeInactive)
}

// RequirementWithScope is a catalog entry together with its applicability rows.
type RequirementWithScope struct {
	Requirement
	Applicability []Applicability `json:"applicability"`
}

func (s *Service) ListCatalog(ctx context.Context, tenantID string, includeInactive bool) ([]RequirementWithScope, error) {
	reqs, err := s.Store.ListRequirements(ctx, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.ListApplicability(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	index := IndexApplicability(rows)
	out := make([]RequirementWithScope, 0, len(reqs))
	for _, req := range reqs {
		scope := index[req.ID]
		if scope == nil {
			scope = []Applicability{}
		}
		out = append(out, RequirementWithScope{Requirement: req, Applicability: scope})
	}
	return out, nil
}

// NormalizeRequirement trims and validates a catalog entry in place.
func NormalizeRequirement(req *Requirement) error {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" {
		return goerr.Wrap(ErrInvalidRequirement, "code is required")
	}
	if req.Name == "" {
		req.Name = req.Code
	}
	category, err := ParseCategory(string(req.Category))
	if err != nil {
		return err
	}
	req.Category = category
	req.Criticality = strings.ToLower(strings.TrimSpace(req.Criticality))
	if req.Criticality == "" {
		req.Criticality = CriticalityNormal
	}
	if !slices.Contains(Criticalities, req.Criticality) {
		return goerr.Wrap(ErrInvalidRequirement, "unknown criticality", goerr.V("criticality", req.Criticality))
	}
	if req.WarningWindowDays != nil && *req.WarningWindowDays < 0 {
		return goerr.Wrap(ErrInvalidWarningWindow, "requirement window", goerr.V("window", *req.WarningWindowDays))
	}
	return nil
}

func (s *Service) CreateRequirement(ctx context.Context, meta audit.Meta, req Requirement, rows []Applicability) (RequirementWithScope, error) {
	if err := NormalizeRequirement(&req); err != nil {
		return RequirementWithScope{}, err
	}
	req.Active = true
	created, err := s.Store.CreateRequirement(ctx, meta.TenantID, req)
	if err != nil {
		return RequirementWithScope{}, err
	}
	rows = normalizeApplicability(created.ID, rows)
	if len(rows) > 0 {
		if err := s.Store.ReplaceApplicability(ctx, meta.TenantID, created.ID, rows); err != nil {
			return RequirementWithScope{}, err
		}
	}
	out := RequirementWithScope{Requirement: created, Applicability: rows}
	s.record(ctx, meta.Entry(audit.ActionCreate, entityRequirement, created.ID, nil, out))
	return out, nil
}

// UpdateRequirement overwrites the editable fields. Setting Active to false deactivates the
// requirement, which removes it from every evaluation without deleting history.
func (s *Service) UpdateRequirement(ctx context.Context, meta audit.Meta, req Requirement) (Requirement, error) {
	before, err := s.Store.GetRequirement(ctx, meta.TenantID, req.ID)
	if err != nil {
		return Requirement{}, err
	}
	if err := NormalizeRequirement(&req); err != nil {
		return Requirement{}, err
	}
	updated, err := s.Store.UpdateRequirement(ctx, meta.TenantID, req)
	if err != nil {
		return Requirement{}, err
	}
	action := audit.ActionUpdate
	if before.Active && !updated.Active {
		action = audit.ActionDeactivate
	}
	s.record(ctx, meta.Entry(action, entityRequirement, updated.ID, before, updated))
	return updated, nil
}

func (s *Service) ReplaceApplicability(ctx context.Context, meta audit.Meta, requirementID string, rows []Applicability) ([]Applicability, error) {
	if _, err := s.Store.GetRequirement(ctx, meta.TenantID, requirementID); err != nil {
		return nil, err
	}
	all, err := s.Store.ListApplicability(ctx, meta.TenantID)
	if err != nil {
		return nil, err
	}
	before := IndexApplicability(all)[requirementID]

	rows = normalizeApplicability(requirementID, rows)
	if err := s.Store.ReplaceApplicability(ctx, meta.TenantID, requirementID, rows); err != nil {
		return nil, err
	}
	s.record(ctx, meta.Entry(audit.ActionReplaceScoping, entityRequirement, requirementID, before, rows))
	return rows, nil
}

// normalizeApplicability trims labels, binds rows to requirementID and drops rows that
// scope nothing.
func normalizeApplicability(requirementID string, rows []Applicability) []Applicability {
	out := make([]Applicability, 0, len(rows))
	for _, row := range rows {
		row.RequirementID = requirementID
		row.AppliesToLine = strings.TrimSpace(row.AppliesToLine)
		row.AppliesToRole = strings.ToUpper(strings.TrimSpace(row.AppliesToRole))
		if !row.AppliesGlobally && row.AppliesToLine == "" && row.AppliesToRole == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, entry); err != nil {
		ctxlog.From(ctx).Warn("audit record failed", "action", entry.Action, "entityId", entry.EntityID, "err", err)
	}
}
