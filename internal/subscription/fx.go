package subscription

import (
	"github.com/subvisor/subvisor/internal/subscription/repository"
	"github.com/subvisor/subvisor/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
