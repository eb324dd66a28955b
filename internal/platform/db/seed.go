package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"workforce/internal/domain/auth"
	"workforce/internal/platform/config"
)

// Seed makes sure the default tenant, permissions, roles and admin users exist, then loads
// the compliance catalog file when one is configured.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	tenantID, err := ensureTenant(ctx, pool, cfg.SeedTenantName)
	if err != nil {
		return err
	}
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}
	roleIDs, err := ensureRoles(ctx, pool, tenantID)
	if err != nil {
		return err
	}
	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}
	if err := ensureUser(ctx, pool, tenantID, roleIDs[auth.RoleHR], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}
	if cfg.SeedSystemAdminEmail != "" {
		if err := ensureUser(ctx, pool, tenantID, roleIDs[auth.RoleSystemAdmin], cfg.SeedSystemAdminEmail, cfg.SeedSystemAdminPassword); err != nil {
			ctxlog.From(ctx).Warn("system admin seed failed", "err", err)
		}
	}

	if strings.TrimSpace(cfg.ComplianceCatalogFile) != "" {
		catalog, err := LoadCatalogFile(cfg.ComplianceCatalogFile)
		if err != nil {
			return err
		}
		inserted, err := SeedCatalog(ctx, pool, tenantID, catalog)
		if err != nil {
			return err
		}
		ctxlog.From(ctx).Info("compliance catalog seeded", "tenantId", tenantID, "inserted", inserted)
	}
	return nil
}

func ensureTenant(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM tenants WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isNoRows(err) {
		return "", goerr.Wrap(err, "failed to look up tenant")
	}
	if err := pool.QueryRow(ctx, "INSERT INTO tenants (name) VALUES ($1) RETURNING id", name).Scan(&id); err != nil {
		return "", goerr.Wrap(err, "failed to create tenant", goerr.V("name", name))
	}
	return id, nil
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		if _, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm); err != nil {
			return goerr.Wrap(err, "failed to seed permission", goerr.V("permission", perm))
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool, tenantID string) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := pool.QueryRow(ctx, `
      INSERT INTO roles (tenant_id, name) VALUES ($1, $2)
      ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
      RETURNING id
    `, tenantID, roleName).Scan(&id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to seed role", goerr.V("role", roleName))
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	permMap := map[string]string{}
	rows, err := pool.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return goerr.Wrap(err, "failed to list permissions")
	}
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return goerr.Wrap(err, "failed to scan permission")
		}
		permMap[key] = id
	}
	rows.Close()

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := permMap[permKey]
			if !ok {
				return goerr.New("permission not found", goerr.V("permission", permKey))
			}
			if _, err := pool.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID); err != nil {
				return goerr.Wrap(err, "failed to grant permission", goerr.V("role", roleName), goerr.V("permission", permKey))
			}
		}
	}
	return nil
}

func ensureUser(ctx context.Context, pool *pgxpool.Pool, tenantID, roleID, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE tenant_id = $1 AND email = $2", tenantID, email).Scan(&id)
	if err == nil {
		return nil
	}
	if !isNoRows(err) {
		return goerr.Wrap(err, "failed to look up user", goerr.V("email", email))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "INSERT INTO users (tenant_id, email, password_hash, role_id) VALUES ($1, $2, $3, $4)", tenantID, email, hash, roleID); err != nil {
		return goerr.Wrap(err, "failed to create user", goerr.V("email", email))
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
