// Package domain contains the read-only tenant and user directory consumed by
// the workflow engine. Account management itself lives elsewhere.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role classifies directory accounts.
type Role string

const (
	// RoleAdministrator marks platform operators who review approval requests.
	RoleAdministrator Role = "ADMINISTRATOR"
	// RoleTenantAdmin marks accounts administering a single tenant.
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleMember      Role = "MEMBER"
)

// Tenant is a customer organization holding subscriptions.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Verified  bool         `gorm:"not null;default:false"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

type User struct {
	ID        snowflake.ID  `gorm:"primaryKey"`
	TenantID  *snowflake.ID `gorm:"index"`
	Role      Role          `gorm:"type:text;not null"`
	Email     string        `gorm:"type:text;not null"`
	Name      string        `gorm:"type:text"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
