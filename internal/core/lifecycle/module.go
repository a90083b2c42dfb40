package lifecycle

import (
	"context"

	"go.uber.org/fx"
)

// Module 返回 Fx 模块
//
// 提供生命周期协调器作为子系统单例。各组件在自己的 OnStart 中推进阶段；
// 本模块的钩子最先注册，因此其 OnStop 最后执行。
func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(NewCoordinator),
		fx.Invoke(registerLifecycleHooks),
	)
}

type lifecycleHooksParams struct {
	fx.In

	Lifecycle   fx.Lifecycle
	Coordinator *Coordinator
}

func registerLifecycleHooks(params lifecycleHooksParams) {
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			err := params.Coordinator.AdvanceTo(PhaseStopped)
			params.Coordinator.Stop()
			return err
		},
	})
}
