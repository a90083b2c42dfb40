package shim

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 拦截层最后安装、最先恢复：OnStop 返回后不再有新调用进入控制器。
func Module() fx.Option {
	return fx.Module("shim",
		fx.Provide(
			ConfigFromUnified,
			ProvideShim,
		),
		fx.Invoke(registerLifecycle),
	)
}

type shimParams struct {
	fx.In

	Config     Config
	Controller interfaces.Controller
}

// ProvideShim 提供拦截层
func ProvideShim(params shimParams) (*Shim, error) {
	return New(params.Config, params.Controller)
}

type lifecycleInput struct {
	fx.In
	LC          fx.Lifecycle
	Shim        *Shim
	Coordinator *lifecycle.Coordinator `optional:"true"`
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Shim.Install()
			if input.Coordinator != nil {
				return input.Coordinator.AdvanceTo(lifecycle.PhaseRunning)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Shim.Restore()
			if input.Coordinator != nil {
				return input.Coordinator.AdvanceTo(lifecycle.PhaseStopping)
			}
			return nil
		},
	})
}
