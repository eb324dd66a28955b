package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateShift(ctx context.Context, tenantID string, shift Shift) (Shift, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO shifts (tenant_id, site_id, line, required_role, starts_at, ends_at)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at
  `, tenantID, nullIfEmpty(shift.SiteID), nullIfEmpty(shift.Line), nullIfEmpty(shift.RequiredRole), shift.StartsAt, shift.EndsAt).Scan(&shift.ID, &shift.CreatedAt)
	if err != nil {
		return Shift{}, goerr.Wrap(err, "failed to create shift")
	}
	return shift, nil
}

const shiftColumns = `
  SELECT s.id, COALESCE(s.site_id, ''), COALESCE(s.line, ''), COALESCE(s.required_role, ''),
         s.starts_at, s.ends_at, s.created_at,
         (SELECT COUNT(1) FROM shift_assignments sa WHERE sa.shift_id = s.id)
  FROM shifts s`

func scanShift(row pgx.Row) (Shift, error) {
	var shift Shift
	err := row.Scan(&shift.ID, &shift.SiteID, &shift.Line, &shift.RequiredRole, &shift.StartsAt, &shift.EndsAt, &shift.CreatedAt, &shift.Assigned)
	return shift, err
}

func (s *Store) GetShift(ctx context.Context, tenantID, shiftID string) (Shift, error) {
	shift, err := scanShift(s.DB.QueryRow(ctx, shiftColumns+" WHERE s.tenant_id = $1 AND s.id = $2", tenantID, shiftID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Shift{}, goerr.Wrap(ErrShiftNotFound, "get shift", goerr.V("shiftId", shiftID))
	}
	return shift, err
}

func (s *Store) ListShifts(ctx context.Context, tenantID string, filter ShiftFilter) ([]Shift, error) {
	query := shiftColumns + " WHERE s.tenant_id = $1"
	args := []any{tenantID}
	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	if strings.TrimSpace(filter.SiteID) != "" {
		add("s.site_id = $%d", filter.SiteID)
	}
	if strings.TrimSpace(filter.Line) != "" {
		add("s.line = $%d", filter.Line)
	}
	if !filter.From.IsZero() {
		add("s.starts_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("s.starts_at < $%d", filter.To)
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY s.starts_at, s.id", args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list shifts")
	}
	defer rows.Close()

	out := []Shift{}
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, shift)
	}
	return out, rows.Err()
}

func (s *Store) ListAssignments(ctx context.Context, tenantID, shiftID string) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, shift_id, employee_id, forced, COALESCE(force_reason, ''), created_at
    FROM shift_assignments
    WHERE tenant_id = $1 AND shift_id = $2
    ORDER BY created_at
  `, tenantID, shiftID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list shift assignments")
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.ShiftID, &a.EmployeeID, &a.Forced, &a.ForceReason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAssignment(ctx context.Context, tenantID string, a Assignment) (Assignment, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO shift_assignments (tenant_id, shift_id, employee_id, forced, force_reason)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id, created_at
  `, tenantID, a.ShiftID, a.EmployeeID, a.Forced, nullIfEmpty(a.ForceReason)).Scan(&a.ID, &a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Assignment{}, ErrAlreadyAssigned
	}
	if err != nil {
		return Assignment{}, goerr.Wrap(err, "failed to assign shift", goerr.V("shiftId", a.ShiftID))
	}
	return a, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
