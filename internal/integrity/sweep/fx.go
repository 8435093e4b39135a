package sweep

import (
	"context"

	"github.com/subvisor/subvisor/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("integrity.sweep",
	fx.Provide(ProvideConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{Interval: cfg.IntegritySweepInterval}.withDefaults()
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
