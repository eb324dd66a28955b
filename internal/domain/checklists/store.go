package checklists

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/compliance"
	"workforce/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateTemplate(ctx context.Context, tenantID string, t Template) (Template, error) {
	positions := make([]int32, len(t.Items))
	titles := make([]string, len(t.Items))
	offsets := make([]int32, len(t.Items))
	for i, item := range t.Items {
		positions[i] = int32(item.Position)
		titles[i] = item.Title
		offsets[i] = int32(item.DueOffsetDays)
	}
	err := s.DB.QueryRow(ctx, `
    WITH tpl AS (
      INSERT INTO checklist_templates (tenant_id, name, kind)
      VALUES ($1,$2,$3)
      RETURNING id, created_at
    ), items AS (
      INSERT INTO checklist_template_items (template_id, position, title, due_offset_days)
      SELECT tpl.id, p, ti, o
      FROM tpl, unnest($4::int[], $5::text[], $6::int[]) AS t(p, ti, o)
    )
    SELECT id, created_at FROM tpl
  `, tenantID, t.Name, t.Kind, positions, titles, offsets).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Template{}, goerr.Wrap(err, "failed to create checklist template")
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context, tenantID string) ([]Template, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT t.id, t.name, t.kind, t.created_at, i.id, i.position, i.title, i.due_offset_days
    FROM checklist_templates t
    JOIN checklist_template_items i ON i.template_id = t.id
    WHERE t.tenant_id = $1
    ORDER BY t.name, t.id, i.position
  `, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list checklist templates")
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		var t Template
		var item TemplateItem
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &t.CreatedAt, &item.ID, &item.Position, &item.Title, &item.DueOffsetDays); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != t.ID {
			out = append(out, t)
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, item)
	}
	return out, rows.Err()
}

func (s *Store) GetTemplate(ctx context.Context, tenantID, templateID string) (Template, error) {
	all, err := s.ListTemplates(ctx, tenantID)
	if err != nil {
		return Template{}, err
	}
	for _, t := range all {
		if t.ID == templateID {
			return t, nil
		}
	}
	return Template{}, goerr.Wrap(ErrTemplateNotFound, "get template", goerr.V("templateId", templateID))
}

// CreateChecklist stores the checklist and its items in one statement.
func (s *Store) CreateChecklist(ctx context.Context, tenantID string, c Checklist) (Checklist, error) {
	positions := make([]int32, len(c.Items))
	titles := make([]string, len(c.Items))
	dues := make([]time.Time, len(c.Items))
	for i, item := range c.Items {
		positions[i] = int32(item.Position)
		titles[i] = item.Title
		dues[i] = item.DueDate.Time()
	}
	err := s.DB.QueryRow(ctx, `
    WITH cl AS (
      INSERT INTO checklists (tenant_id, template_id, employee_id, kind, start_date)
      VALUES ($1,$2,$3,$4,$5)
      RETURNING id, created_at
    ), items AS (
      INSERT INTO checklist_items (checklist_id, position, title, due_date)
      SELECT cl.id, p, ti, d
      FROM cl, unnest($6::int[], $7::text[], $8::date[]) AS t(p, ti, d)
    )
    SELECT id, created_at FROM cl
  `, tenantID, c.TemplateID, c.EmployeeID, c.Kind, c.StartDate.Time(), positions, titles, dues).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Checklist{}, goerr.Wrap(err, "failed to create checklist", goerr.V("employeeId", c.EmployeeID))
	}
	return c, nil
}

const checklistColumns = `
  SELECT c.id, c.template_id, t.name, c.employee_id, c.kind, c.start_date, c.created_at,
         i.id, i.position, i.title, i.due_date, i.completed_at, COALESCE(i.completed_by::text, '')
  FROM checklists c
  JOIN checklist_templates t ON t.id = c.template_id
  JOIN checklist_items i ON i.checklist_id = c.id`

func scanChecklists(rows pgx.Rows) ([]Checklist, error) {
	defer rows.Close()
	out := []Checklist{}
	for rows.Next() {
		var c Checklist
		var item Item
		var start time.Time
		var due *time.Time
		if err := rows.Scan(&c.ID, &c.TemplateID, &c.Name, &c.EmployeeID, &c.Kind, &start, &c.CreatedAt,
			&item.ID, &item.Position, &item.Title, &due, &item.CompletedAt, &item.CompletedBy); err != nil {
			return nil, err
		}
		c.StartDate = compliance.DateOf(start, time.UTC)
		item.DueDate = compliance.DatePtr(due)
		if n := len(out); n == 0 || out[n-1].ID != c.ID {
			out = append(out, c)
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, item)
	}
	return out, rows.Err()
}

func (s *Store) ListForEmployee(ctx context.Context, tenantID, employeeID string) ([]Checklist, error) {
	rows, err := s.DB.Query(ctx, checklistColumns+`
    WHERE c.tenant_id = $1 AND c.employee_id = $2
    ORDER BY c.created_at DESC, c.id, i.position
  `, tenantID, employeeID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list checklists", goerr.V("employeeId", employeeID))
	}
	return scanChecklists(rows)
}

func (s *Store) GetChecklist(ctx context.Context, tenantID, checklistID string) (Checklist, error) {
	rows, err := s.DB.Query(ctx, checklistColumns+`
    WHERE c.tenant_id = $1 AND c.id = $2
    ORDER BY i.position
  `, tenantID, checklistID)
	if err != nil {
		return Checklist{}, goerr.Wrap(err, "failed to get checklist", goerr.V("checklistId", checklistID))
	}
	list, err := scanChecklists(rows)
	if err != nil {
		return Checklist{}, err
	}
	if len(list) == 0 {
		return Checklist{}, goerr.Wrap(ErrChecklistNotFound, "get checklist", goerr.V("checklistId", checklistID))
	}
	return list[0], nil
}

// CompleteItem marks an item done. Completing an already completed item keeps the first completion.
func (s *Store) CompleteItem(ctx context.Context, tenantID, checklistID, itemID, userID string) error {
	var id string
	err := s.DB.QueryRow(ctx, `
    UPDATE checklist_items i
    SET completed_at = COALESCE(i.completed_at, now()),
        completed_by = COALESCE(i.completed_by, $4::uuid)
    FROM checklists c
    WHERE i.id = $3 AND i.checklist_id = $2 AND c.id = i.checklist_id AND c.tenant_id = $1
    RETURNING i.id
  `, tenantID, checklistID, itemID, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return goerr.Wrap(ErrItemNotFound, "complete item", goerr.V("itemId", itemID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to complete checklist item", goerr.V("itemId", itemID))
	}
	return nil
}

// OpenCounts counts checklists with unfinished items, and those with items due before asOf.
func (s *Store) OpenCounts(ctx context.Context, tenantID string, asOf compliance.Date) (OpenCounts, error) {
	var out OpenCounts
	err := s.DB.QueryRow(ctx, `
    WITH pending AS (
      SELECT c.id, c.kind,
             bool_or(i.due_date < $2 AND i.completed_at IS NULL) AS overdue
      FROM checklists c
      JOIN checklist_items i ON i.checklist_id = c.id
      WHERE c.tenant_id = $1
      GROUP BY c.id, c.kind
      HAVING bool_or(i.completed_at IS NULL)
    )
    SELECT COUNT(1),
           COUNT(1) FILTER (WHERE overdue),
           COUNT(1) FILTER (WHERE kind = 'onboarding'),
           COUNT(1) FILTER (WHERE kind = 'offboarding')
    FROM pending
  `, tenantID, asOf.Time()).Scan(&out.Open, &out.WithOverdue, &out.Onboarding, &out.Offboarding)
	if err != nil {
		return OpenCounts{}, goerr.Wrap(err, "failed to count open checklists")
	}
	return out, nil
}
