package migration

import (
	"github.com/subvisor/subvisor/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The embedded migrations target postgres. Other dialects (sqlite in
		// tests) create their schema through AutoMigrate instead.
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB)
	}),
)
