package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const selectColumns = `
  SELECT id,
         COALESCE(employee_number, ''),
         first_name, last_name, email,
         COALESCE(line, ''),
         COALESCE(primary_role_code, ''),
         COALESCE(site_id, ''),
         COALESCE(manager_id::text, ''),
         start_date, end_date, status, created_at, updated_at
  FROM employees`

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	var start, end *time.Time
	if err := row.Scan(
		&emp.ID, &emp.EmployeeNumber, &emp.FirstName, &emp.LastName, &emp.Email,
		&emp.Line, &emp.PrimaryRoleCode, &emp.SiteID, &emp.ManagerID,
		&start, &end, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt,
	); err != nil {
		return Employee{}, err
	}
	emp.StartDate = compliance.DatePtr(start)
	emp.EndDate = compliance.DatePtr(end)
	return emp, nil
}

func (s *Store) Get(ctx context.Context, tenantID, employeeID string) (Employee, error) {
	emp, err := scanEmployee(s.DB.QueryRow(ctx, selectColumns+" WHERE tenant_id = $1 AND id = $2", tenantID, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, goerr.Wrap(ErrNotFound, "get employee", goerr.V("employeeId", employeeID))
	}
	return emp, err
}

func (s *Store) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	where, args := buildWhere(tenantID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees"+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns employees ordered by last name. A limit of zero returns every match.
func (s *Store) List(ctx context.Context, tenantID string, filter Filter, limit, offset int) ([]Employee, error) {
	where, args := buildWhere(tenantID, filter)
	query := selectColumns + where + " ORDER BY last_name, first_name, id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, tenantID string, emp Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (tenant_id, employee_number, first_name, last_name, email, line, primary_role_code,
      site_id, manager_id, start_date, end_date, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    RETURNING id
  `,
		tenantID, nullIfEmpty(emp.EmployeeNumber), emp.FirstName, emp.LastName, emp.Email,
		nullIfEmpty(emp.Line), nullIfEmpty(emp.PrimaryRoleCode), nullIfEmpty(emp.SiteID), nullIfEmpty(emp.ManagerID),
		compliance.DateValue(emp.StartDate), compliance.DateValue(emp.EndDate), emp.Status,
	).Scan(&id)
	if isUniqueViolation(err) {
		return "", goerr.Wrap(ErrDuplicate, "insert employee", goerr.V("employeeNumber", emp.EmployeeNumber))
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to insert employee")
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, tenantID, employeeID string, emp Employee) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET employee_number = $1,
        first_name = $2,
        last_name = $3,
        email = $4,
        line = $5,
        primary_role_code = $6,
        site_id = $7,
        manager_id = $8,
        start_date = $9,
        end_date = $10,
        status = $11,
        updated_at = now()
    WHERE tenant_id = $12 AND id = $13
  `,
		nullIfEmpty(emp.EmployeeNumber), emp.FirstName, emp.LastName, emp.Email,
		nullIfEmpty(emp.Line), nullIfEmpty(emp.PrimaryRoleCode), nullIfEmpty(emp.SiteID), nullIfEmpty(emp.ManagerID),
		compliance.DateValue(emp.StartDate), compliance.DateValue(emp.EndDate), emp.Status, tenantID, employeeID,
	)
	if isUniqueViolation(err) {
		return goerr.Wrap(ErrDuplicate, "update employee", goerr.V("employeeId", employeeID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to update employee", goerr.V("employeeId", employeeID))
	}
	if cmd.RowsAffected() == 0 {
		return goerr.Wrap(ErrNotFound, "update employee", goerr.V("employeeId", employeeID))
	}
	return nil
}

func buildWhere(tenantID string, filter Filter) (string, []any) {
	where := " WHERE tenant_id = $1"
	args := []any{tenantID}
	add := func(clause string, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		args = append(args, value)
		where += fmt.Sprintf(" AND "+clause, len(args))
	}
	add("site_id = $%d", filter.SiteID)
	add("line = $%d", filter.Line)
	add("manager_id::text = $%d", filter.ManagerID)
	add("id::text = $%d", filter.EmployeeID)
	add("(manager_id::text = $%[1]d OR id::text = $%[1]d)", filter.TeamOf)
	add("status = $%d", filter.Status)
	return where, args
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
