package registry

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(
			ConfigFromUnified,
			ProvideRegistry,
		),
		fx.Invoke(registerLifecycle),
	)
}

type registryParams struct {
	fx.In

	Config Config
	Clock  clock.Clock `optional:"true"`
}

type registryResult struct {
	fx.Out

	Registry  *Registry
	Interface interfaces.Registry
}

// ProvideRegistry 提供目标登记表
func ProvideRegistry(params registryParams) (registryResult, error) {
	r, err := New(params.Config, params.Clock)
	if err != nil {
		return registryResult{}, err
	}
	return registryResult{Registry: r, Interface: r}, nil
}

type lifecycleInput struct {
	fx.In
	LC          fx.Lifecycle
	Registry    *Registry
	Coordinator *lifecycle.Coordinator `optional:"true"`
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if input.Coordinator != nil {
				return input.Coordinator.AdvanceTo(lifecycle.PhaseRegistryReady)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Debug("目标登记表已停止", "entries", input.Registry.Len())
			return nil
		},
	})
}
