package autoapproval

import (
	"github.com/subvisor/subvisor/internal/autoapproval/repository"
	"github.com/subvisor/subvisor/internal/autoapproval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("autoapproval.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
