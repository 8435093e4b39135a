package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	dbpkg "github.com/subvisor/subvisor/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() notificationdomain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, notifications []notificationdomain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	for _, n := range notifications {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO notifications (
				id, recipient_id, type, title, message, related_entity_type, related_entity_id,
				is_read, read_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID,
			n.RecipientID,
			n.Type,
			n.Title,
			n.Message,
			n.RelatedEntityType,
			n.RelatedEntityID,
			n.IsRead,
			n.ReadAt,
			n.CreatedAt,
		).Error; err != nil {
			// A replayed batch may collide with rows it already wrote.
			if dbpkg.IsDuplicateKeyErr(err) {
				continue
			}
			return err
		}
	}

	return nil
}

func (r *repo) UpdateReadState(ctx context.Context, db *gorm.DB, recipientID snowflake.ID, ids []snowflake.ID, read bool, readAt *time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ?, read_at = ? WHERE recipient_id = ? AND id IN ?`,
		read,
		readAt,
		recipientID,
		ids,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM notifications WHERE created_at < ?`,
		cutoff,
	)
	return result.RowsAffected, result.Error
}
