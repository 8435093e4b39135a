package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	autoapprovaldomain "github.com/subvisor/subvisor/internal/autoapproval/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Row is the persistence shape of a rule. Condition lists are stored as
// JSON blobs; decoding them into the structured domain Rule happens only here.
type Row struct {
	ID                  snowflake.ID   `gorm:"primaryKey"`
	Name                string         `gorm:"type:text;not null"`
	Active              bool           `gorm:"not null;default:false"`
	Priority            int            `gorm:"not null;default:0"`
	PlanIDs             datatypes.JSON `gorm:"column:plan_ids;type:jsonb"`
	VerifiedTenantsOnly bool           `gorm:"not null;default:false"`
	PaymentMethods      datatypes.JSON `gorm:"column:payment_methods;type:jsonb"`
	MaxPrice            *float64       `gorm:""`
	CreatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Row) TableName() string { return "auto_approval_rules" }

type repo struct{}

func Provide() autoapprovaldomain.Repository {
	return &repo{}
}

func (r *repo) ListActiveOrdered(ctx context.Context, db *gorm.DB) ([]autoapprovaldomain.Rule, error) {
	var rows []Row
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, active, priority, plan_ids, verified_tenants_only, payment_methods,
		 max_price, created_at, updated_at
		 FROM auto_approval_rules
		 WHERE active = ?
		 ORDER BY priority DESC, id ASC`,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	rules := make([]autoapprovaldomain.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*autoapprovaldomain.Rule, error) {
	var row Row
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, active, priority, plan_ids, verified_tenants_only, payment_methods,
		 max_price, created_at, updated_at
		 FROM auto_approval_rules WHERE id = ?`,
		id,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}

	rule, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (row Row) toDomain() (autoapprovaldomain.Rule, error) {
	rule := autoapprovaldomain.Rule{
		ID:                  row.ID,
		Name:                row.Name,
		Active:              row.Active,
		Priority:            row.Priority,
		VerifiedTenantsOnly: row.VerifiedTenantsOnly,
		MaxPrice:            row.MaxPrice,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}

	planIDs, err := decodeStringList(row.PlanIDs)
	if err != nil {
		return rule, err
	}
	for _, raw := range planIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return rule, err
		}
		rule.PlanIDs = append(rule.PlanIDs, id)
	}

	rule.PaymentMethods, err = decodeStringList(row.PaymentMethods)
	if err != nil {
		return rule, err
	}

	return rule, nil
}

func decodeStringList(blob datatypes.JSON) ([]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(blob, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// EncodeStringList is the inverse of the row decoding, used by fixtures and
// by the administrative surface owning rule CRUD.
func EncodeStringList(values []string) (datatypes.JSON, error) {
	if len(values) == 0 {
		return datatypes.JSON("[]"), nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
