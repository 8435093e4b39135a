package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/subvisor/subvisor/internal/autoapproval"
	"github.com/subvisor/subvisor/internal/clock"
	"github.com/subvisor/subvisor/internal/config"
	"github.com/subvisor/subvisor/internal/directory"
	"github.com/subvisor/subvisor/internal/integrity"
	"github.com/subvisor/subvisor/internal/integrity/sweep"
	"github.com/subvisor/subvisor/internal/logger"
	"github.com/subvisor/subvisor/internal/migration"
	"github.com/subvisor/subvisor/internal/notification"
	"github.com/subvisor/subvisor/internal/observability/metrics"
	"github.com/subvisor/subvisor/internal/observability/tracing"
	"github.com/subvisor/subvisor/internal/plan"
	"github.com/subvisor/subvisor/internal/server"
	"github.com/subvisor/subvisor/internal/subscription"
	"github.com/subvisor/subvisor/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		tracing.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		directory.Module,
		plan.Module,
		notification.Module,
		autoapproval.Module,
		subscription.Module,
		integrity.Module,
		sweep.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
