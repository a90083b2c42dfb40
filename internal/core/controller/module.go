package controller

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("controller",
		fx.Provide(ProvideController),
		fx.Invoke(registerLifecycle),
	)
}

type controllerParams struct {
	fx.In

	Pool     interfaces.SocketPool
	Registry interfaces.Registry
	Reaper   interfaces.Reaper
}

type controllerResult struct {
	fx.Out

	Controller *Controller
	Interface  interfaces.Controller
}

// ProvideController 提供连接控制器
func ProvideController(params controllerParams) (controllerResult, error) {
	c, err := New(params.Pool, params.Registry, params.Reaper)
	if err != nil {
		return controllerResult{}, err
	}
	return controllerResult{Controller: c, Interface: c}, nil
}

type lifecycleInput struct {
	fx.In
	LC          fx.Lifecycle
	Controller  *Controller
	Coordinator *lifecycle.Coordinator `optional:"true"`
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Controller.Start()
			if input.Coordinator != nil {
				return input.Coordinator.AdvanceTo(lifecycle.PhaseControllerReady)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			return input.Controller.Close()
		},
	})
}
