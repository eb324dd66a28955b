package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/m-mizutani/goerr/v2"

	cryptoutil "workforce/internal/platform/crypto"
	"workforce/internal/platform/querier"
)

// Store persists the catalog, applicability rows, assignments and snapshots. Document
// numbers are sealed at rest when a Sealer is configured.
type Store struct {
	DB     querier.Querier
	Sealer *cryptoutil.Sealer
}

func NewStore(db querier.Querier, sealer *cryptoutil.Sealer) *Store {
	return &Store{DB: db, Sealer: sealer}
}

const requirementColumns = `
  SELECT id, code, name, category, criticality, active, warning_window_days, created_at, updated_at
  FROM compliance_catalog`

func scanRequirement(row pgx.Row) (Requirement, error) {
	var req Requirement
	var category string
	if err := row.Scan(&req.ID, &req.Code, &req.Name, &category, &req.Criticality, &req.Active, &req.WarningWindowDays, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Requirement{}, err
	}
	req.Category = Category(category)
	return req, nil
}

func (s *Store) ListRequirements(ctx context.Context, tenantID string, includeInactive bool) ([]Requirement, error) {
	query := requirementColumns + " WHERE tenant_id = $1"
	if !includeInactive {
		query += " AND active"
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY code", tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list requirements")
	}
	defer rows.Close()

	var out []Requirement
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) GetRequirement(ctx context.Context, tenantID, requirementID string) (Requirement, error) {
	req, err := scanRequirement(s.DB.QueryRow(ctx, requirementColumns+" WHERE tenant_id = $1 AND id = $2", tenantID, requirementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Requirement{}, goerr.Wrap(ErrRequirementNotFound, "get requirement", goerr.V("requirementId", requirementID))
	}
	return req, err
}

func (s *Store) CreateRequirement(ctx context.Context, tenantID string, req Requirement) (Requirement, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO compliance_catalog (tenant_id, code, name, category, criticality, active, warning_window_days)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at, updated_at
  `, tenantID, req.Code, req.Name, string(req.Category), req.Criticality, req.Active, req.WarningWindowDays).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if isUniqueViolation(err) {
		return Requirement{}, goerr.Wrap(ErrDuplicateCode, "create requirement", goerr.V("code", req.Code))
	}
	if err != nil {
		return Requirement{}, goerr.Wrap(err, "failed to create requirement", goerr.V("code", req.Code))
	}
	return req, nil
}

func (s *Store) UpdateRequirement(ctx context.Context, tenantID string, req Requirement) (Requirement, error) {
	err := s.DB.QueryRow(ctx, `
    UPDATE compliance_catalog
    SET code = $1, name = $2, category = $3, criticality = $4, active = $5, warning_window_days = $6, updated_at = now()
    WHERE tenant_id = $7 AND id = $8
    RETURNING created_at, updated_at
  `, req.Code, req.Name, string(req.Category), req.Criticality, req.Active, req.WarningWindowDays, tenantID, req.ID).Scan(&req.CreatedAt, &req.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Requirement{}, goerr.Wrap(ErrRequirementNotFound, "update requirement", goerr.V("requirementId", req.ID))
	case isUniqueViolation(err):
		return Requirement{}, goerr.Wrap(ErrDuplicateCode, "update requirement", goerr.V("code", req.Code))
	case err != nil:
		return Requirement{}, goerr.Wrap(err, "failed to update requirement", goerr.V("requirementId", req.ID))
	}
	return req, nil
}

func (s *Store) ListApplicability(ctx context.Context, tenantID string) ([]Applicability, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, requirement_id, applies_globally, COALESCE(applies_to_line, ''), COALESCE(applies_to_role, '')
    FROM compliance_requirement_applicability
    WHERE tenant_id = $1
    ORDER BY requirement_id, id
  `, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list applicability")
	}
	defer rows.Close()

	var out []Applicability
	for rows.Next() {
		var row Applicability
		if err := rows.Scan(&row.ID, &row.RequirementID, &row.AppliesGlobally, &row.AppliesToLine, &row.AppliesToRole); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReplaceApplicability swaps every row of a requirement in a single statement.
func (s *Store) ReplaceApplicability(ctx context.Context, tenantID, requirementID string, rows []Applicability) error {
	globals := make([]bool, len(rows))
	lines := make([]string, len(rows))
	roles := make([]string, len(rows))
	for i, row := range rows {
		globals[i] = row.AppliesGlobally
		lines[i] = strings.TrimSpace(row.AppliesToLine)
		roles[i] = strings.TrimSpace(row.AppliesToRole)
	}
	_, err := s.DB.Exec(ctx, `
    WITH removed AS (
      DELETE FROM compliance_requirement_applicability WHERE tenant_id = $1 AND requirement_id = $2
    )
    INSERT INTO compliance_requirement_applicability (tenant_id, requirement_id, applies_globally, applies_to_line, applies_to_role)
    SELECT $1, $2, g, NULLIF(l, ''), NULLIF(r, '')
    FROM unnest($3::bool[], $4::text[], $5::text[]) AS t(g, l, r)
  `, tenantID, requirementID, globals, lines, roles)
	if err != nil {
		return goerr.Wrap(err, "failed to replace applicability", goerr.V("requirementId", requirementID))
	}
	return nil
}

const subjectColumns = `
  SELECT id, COALESCE(employee_number, ''), first_name || ' ' || last_name,
         COALESCE(line, ''), COALESCE(primary_role_code, ''), COALESCE(site_id, '')
  FROM employees`

func scopeWhere(tenantID string, scope Scope, alias string) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	where := " WHERE " + col("tenant_id") + " = $1"
	args := []any{tenantID}
	if !scope.IncludeInactive {
		where += " AND " + col("status") + " = 'active'"
	}
	add := func(clause, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		args = append(args, strings.TrimSpace(value))
		where += fmt.Sprintf(" AND "+clause, len(args))
	}
	add(col("site_id")+" = $%d", scope.SiteID)
	add(col("line")+" = $%d", scope.Line)
	add(col("manager_id")+"::text = $%d", scope.ManagerID)
	add(col("id")+"::text = $%d", scope.EmployeeID)
	add("("+col("manager_id")+"::text = $%[1]d OR "+col("id")+"::text = $%[1]d)", scope.TeamOf)
	return where, args
}

func (s *Store) ListSubjects(ctx context.Context, tenantID string, scope Scope) ([]Employee, error) {
	where, args := scopeWhere(tenantID, scope, "")
	rows, err := s.DB.Query(ctx, subjectColumns+where+" ORDER BY last_name, first_name, id", args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list employees")
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(&emp.ID, &emp.EmployeeNumber, &emp.Name, &emp.Line, &emp.PrimaryRoleCode, &emp.SiteID); err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) GetSubject(ctx context.Context, tenantID, employeeID string) (Employee, error) {
	var emp Employee
	err := s.DB.QueryRow(ctx, subjectColumns+" WHERE tenant_id = $1 AND id = $2", tenantID, employeeID).
		Scan(&emp.ID, &emp.EmployeeNumber, &emp.Name, &emp.Line, &emp.PrimaryRoleCode, &emp.SiteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, goerr.Wrap(ErrEmployeeNotFound, "get employee", goerr.V("employeeId", employeeID))
	}
	return emp, err
}

// ListAssignments returns every assignment of the employees in scope.
func (s *Store) ListAssignments(ctx context.Context, tenantID string, scope Scope) ([]Assignment, error) {
	where, args := scopeWhere(tenantID, scope, "e")
	rows, err := s.DB.Query(ctx, `
    SELECT ec.id, ec.employee_id, ec.requirement_id, ec.valid_to, ec.waived, COALESCE(ec.waiver_reason, ''),
           COALESCE(ec.document_number, ''), ec.document_number_enc, ec.updated_at
    FROM employee_compliance ec
    JOIN employees e ON e.id = ec.employee_id
  `+where+" AND ec.tenant_id = $1 ORDER BY ec.updated_at", args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list assignments")
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := s.scanAssignment(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAssignment(ctx context.Context, tenantID, employeeID, requirementID string) (Assignment, bool, error) {
	a, err := s.scanAssignment(ctx, s.DB.QueryRow(ctx, `
    SELECT id, employee_id, requirement_id, valid_to, waived, COALESCE(waiver_reason, ''),
           COALESCE(document_number, ''), document_number_enc, updated_at
    FROM employee_compliance
    WHERE tenant_id = $1 AND employee_id = $2 AND requirement_id = $3
  `, tenantID, employeeID, requirementID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, err
	}
	return a, true, nil
}

func (s *Store) scanAssignment(ctx context.Context, row pgx.Row) (Assignment, error) {
	var a Assignment
	var validTo *time.Time
	var docPlain string
	var docSealed []byte
	if err := row.Scan(&a.ID, &a.EmployeeID, &a.RequirementID, &validTo, &a.Waived, &a.WaiverReason, &docPlain, &docSealed, &a.UpdatedAt); err != nil {
		return Assignment{}, err
	}
	a.ValidTo = DatePtr(validTo)
	a.DocumentNumber = docPlain
	if len(docSealed) > 0 {
		a.DocumentNumber = s.Sealer.OpenString(ctx, docSealed)
	}
	return a, nil
}

// UpsertAssignment writes the single row for (employee, requirement).
func (s *Store) UpsertAssignment(ctx context.Context, tenantID string, a Assignment) (Assignment, error) {
	var docPlain any = nullIfEmpty(a.DocumentNumber)
	var docSealed []byte
	if s.Sealer.Configured() && a.DocumentNumber != "" {
		sealed, err := s.Sealer.SealString(a.DocumentNumber)
		if err != nil {
			return Assignment{}, err
		}
		docSealed = sealed
		docPlain = nil
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employee_compliance (tenant_id, employee_id, requirement_id, valid_to, waived, waiver_reason, document_number, document_number_enc)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    ON CONFLICT (employee_id, requirement_id) DO UPDATE
    SET valid_to = EXCLUDED.valid_to,
        waived = EXCLUDED.waived,
        waiver_reason = EXCLUDED.waiver_reason,
        document_number = EXCLUDED.document_number,
        document_number_enc = EXCLUDED.document_number_enc,
        updated_at = now()
    RETURNING id, updated_at
  `, tenantID, a.EmployeeID, a.RequirementID, DateValue(a.ValidTo), a.Waived, nullIfEmpty(a.WaiverReason), docPlain, docSealed).Scan(&a.ID, &a.UpdatedAt)
	if err != nil {
		return Assignment{}, goerr.Wrap(err, "failed to upsert assignment", goerr.V("employeeId", a.EmployeeID), goerr.V("requirementId", a.RequirementID))
	}
	return a, nil
}

// UpsertAssignments writes rows in one transaction. Any failure rolls back every row.
func (s *Store) UpsertAssignments(ctx context.Context, tenantID string, rows []Assignment) ([]Assignment, error) {
	db, ok := s.DB.(querier.Beginner)
	if !ok {
		return nil, goerr.Wrap(ErrNoTransactions, "failed to upsert assignments")
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin assignment batch")
	}
	defer tx.Rollback(ctx)

	txStore := &Store{DB: tx, Sealer: s.Sealer}
	saved := make([]Assignment, 0, len(rows))
	for _, row := range rows {
		a, err := txStore.UpsertAssignment(ctx, tenantID, row)
		if err != nil {
			return nil, err
		}
		saved = append(saved, a)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to commit assignment batch", goerr.V("rows", len(rows)))
	}
	return saved, nil
}

// Snapshot is the stored org summary of one sweep.
type Snapshot struct {
	AsOf      Date      `json:"asOf"`
	Summary   Summary   `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Store) SaveSnapshot(ctx context.Context, tenantID string, asOf Date, summary Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return goerr.Wrap(err, "failed to encode snapshot")
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO compliance_snapshots (tenant_id, as_of, summary_json)
    VALUES ($1,$2,$3)
    ON CONFLICT (tenant_id, as_of) DO UPDATE SET summary_json = EXCLUDED.summary_json, created_at = now()
  `, tenantID, asOf.Time(), payload)
	if err != nil {
		return goerr.Wrap(err, "failed to save snapshot", goerr.V("asOf", asOf.String()))
	}
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context, tenantID string, limit int) ([]Snapshot, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT as_of, summary_json, created_at
    FROM compliance_snapshots
    WHERE tenant_id = $1
    ORDER BY as_of DESC
    LIMIT $2
  `, tenantID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var asOf time.Time
		var payload []byte
		if err := rows.Scan(&asOf, &payload, &snap.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &snap.Summary); err != nil {
			return nil, goerr.Wrap(err, "failed to decode snapshot")
		}
		snap.AsOf = *DatePtr(&asOf)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
