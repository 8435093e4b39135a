package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ListActiveOrdered returns active rules ordered by priority descending,
	// ties broken by ascending rule id, so evaluation is deterministic.
	ListActiveOrdered(ctx context.Context, db *gorm.DB) ([]Rule, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
}
