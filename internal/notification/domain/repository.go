package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, notifications []Notification) error
	UpdateReadState(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, ids []snowflake.ID, read bool, readAt *time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
