package auth

import (
	"context"
	"time"

	"workforce/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID         string
	TenantID   string
	RoleID     string
	RoleName   string
	Email      string
	Password   string
	EmployeeID string
	MFAEnabled bool
	MFASecret  []byte
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	var employeeID *string
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.tenant_id, u.role_id, r.name, u.email, u.password_hash, u.employee_id, u.mfa_enabled, u.mfa_secret_enc
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE lower(u.email) = lower($1) AND u.status = $2
  `, email, UserStatusActive).Scan(&out.ID, &out.TenantID, &out.RoleID, &out.RoleName, &out.Email, &out.Password, &employeeID, &out.MFAEnabled, &out.MFASecret)
	if employeeID != nil {
		out.EmployeeID = *employeeID
	}
	return out, err
}

func (s *Store) FindUser(ctx context.Context, tenantID, userID string) (AuthUser, error) {
	var out AuthUser
	var employeeID *string
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.tenant_id, u.role_id, r.name, u.email, '', u.employee_id, u.mfa_enabled
    FROM users u
    JOIN roles r ON u.role_id = r.id
    WHERE u.tenant_id = $1 AND u.id = $2
  `, tenantID, userID).Scan(&out.ID, &out.TenantID, &out.RoleID, &out.RoleName, &out.Email, &out.Password, &employeeID, &out.MFAEnabled)
	if employeeID != nil {
		out.EmployeeID = *employeeID
	}
	return out, err
}

func (s *Store) CreateSession(ctx context.Context, userID, sessionHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sessions (user_id, token_hash, expires_at)
    VALUES ($1,$2,$3)
  `, userID, sessionHash, expires)
	return err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) RevokeSession(ctx context.Context, userID, sessionHash string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND token_hash = $2", userID, sessionHash)
	return err
}

func (s *Store) SessionValid(ctx context.Context, userID, sessionHash string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM sessions
    WHERE user_id = $1 AND token_hash = $2 AND expires_at > now() AND revoked_at IS NULL
  `, userID, sessionHash).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) HasPermission(ctx context.Context, roleID, permission string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM role_permissions rp
    JOIN permissions p ON rp.permission_id = p.id
    WHERE rp.role_id = $1 AND p.key = $2
  `, roleID, permission).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) SaveMFASecret(ctx context.Context, userID string, sealed []byte) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_secret_enc = $1, mfa_enabled = false WHERE id = $2", sealed, userID)
	return err
}

func (s *Store) MFASecret(ctx context.Context, userID string) ([]byte, error) {
	var sealed []byte
	if err := s.DB.QueryRow(ctx, "SELECT mfa_secret_enc FROM users WHERE id = $1", userID).Scan(&sealed); err != nil {
		return nil, err
	}
	return sealed, nil
}

func (s *Store) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET mfa_enabled = $1 WHERE id = $2", enabled, userID)
	return err
}
