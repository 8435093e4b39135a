package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/subvisor/subvisor/internal/directory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() directorydomain.Repository {
	return &repo{}
}

func (r *repo) FindTenantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*directorydomain.Tenant, error) {
	var tenant directorydomain.Tenant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, verified, created_at, updated_at FROM tenants WHERE id = ?`,
		id,
	).Scan(&tenant).Error
	if err != nil {
		return nil, err
	}
	if tenant.ID == 0 {
		return nil, nil
	}
	return &tenant, nil
}

func (r *repo) IsTenantVerified(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var verified bool
	if err := db.WithContext(ctx).Raw(
		`SELECT verified FROM tenants WHERE id = ?`,
		id,
	).Scan(&verified).Error; err != nil {
		return false, err
	}
	return verified, nil
}

func (r *repo) ListPlatformAdmins(ctx context.Context, db *gorm.DB) ([]directorydomain.User, error) {
	var users []directorydomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, role, email, name, created_at, updated_at
		 FROM users WHERE role = ? ORDER BY id ASC`,
		directorydomain.RoleAdministrator,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) ListTenantAdmins(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]directorydomain.User, error) {
	var users []directorydomain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, role, email, name, created_at, updated_at
		 FROM users WHERE tenant_id = ? AND role = ? ORDER BY id ASC`,
		tenantID,
		directorydomain.RoleTenantAdmin,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) UserExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM users WHERE id = ?`,
		id,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
