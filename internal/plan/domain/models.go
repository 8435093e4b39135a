// Package domain contains the read-only plan catalog consumed by the workflow
// engine. Plan management lives elsewhere.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Plan struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Name         string       `gorm:"type:text;not null"`
	BillingCycle string       `gorm:"type:text;not null"`
	Price        float64      `gorm:"not null"`
	Active       bool         `gorm:"not null;default:true"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
}

var ErrPlanNotFound = errors.New("plan_not_found")
