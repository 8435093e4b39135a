package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindTenantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	IsTenantVerified(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	ListPlatformAdmins(ctx context.Context, db *gorm.DB) ([]User, error)
	ListTenantAdmins(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]User, error)
	UserExists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}

var ErrTenantNotFound = errors.New("tenant_not_found")
