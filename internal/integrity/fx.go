package integrity

import (
	"github.com/subvisor/subvisor/internal/integrity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("integrity.service",
	fx.Provide(service.NewService),
)
