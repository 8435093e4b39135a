package plan

import (
	"github.com/subvisor/subvisor/internal/plan/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("plan",
	fx.Provide(repository.Provide),
)
