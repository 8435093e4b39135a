package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/subvisor/subvisor/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, billing_cycle, price, active, created_at, updated_at
		 FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}
