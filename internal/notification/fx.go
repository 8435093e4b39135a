package notification

import (
	"github.com/subvisor/subvisor/internal/notification/repository"
	"github.com/subvisor/subvisor/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
