package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	notificationdomain "github.com/subvisor/subvisor/internal/notification/domain"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&notificationdomain.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestInsertBatchToleratesReplay(t *testing.T) {
	db := openTestDB(t)
	repo := Provide()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	batch := []notificationdomain.Notification{
		{
			ID:          node.Generate(),
			RecipientID: node.Generate(),
			Type:        notificationdomain.EventRequestCreated,
			Title:       "New subscription request",
			Message:     "acme requested the pro plan",
			CreatedAt:   now,
		},
		{
			ID:          node.Generate(),
			RecipientID: node.Generate(),
			Type:        notificationdomain.EventRequestCreated,
			Title:       "New subscription request",
			Message:     "acme requested the pro plan",
			CreatedAt:   now,
		},
	}

	if err := repo.InsertBatch(context.Background(), db, batch); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	// Delivering the same batch again must not fail or duplicate rows.
	if err := repo.InsertBatch(context.Background(), db, batch); err != nil {
		t.Fatalf("replayed batch: %v", err)
	}

	var count int64
	if err := db.Model(&notificationdomain.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("row count = %d, want 2", count)
	}
}

func TestInsertBatchSkipsOnlyDuplicates(t *testing.T) {
	db := openTestDB(t)
	repo := Provide()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	existing := notificationdomain.Notification{
		ID:          node.Generate(),
		RecipientID: node.Generate(),
		Type:        notificationdomain.EventApproved,
		Title:       "Subscription approved",
		Message:     "your subscription is now active",
		CreatedAt:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := repo.InsertBatch(context.Background(), db, []notificationdomain.Notification{existing}); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	fresh := notificationdomain.Notification{
		ID:          node.Generate(),
		RecipientID: existing.RecipientID,
		Type:        notificationdomain.EventApproved,
		Title:       "Subscription approved",
		Message:     "your subscription is now active",
		CreatedAt:   time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC),
	}
	if err := repo.InsertBatch(context.Background(), db, []notificationdomain.Notification{existing, fresh}); err != nil {
		t.Fatalf("mixed batch: %v", err)
	}

	var count int64
	if err := db.Model(&notificationdomain.Notification{}).Count(&count).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("row count = %d, want 2", count)
	}
}
