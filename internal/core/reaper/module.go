package reaper

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 回收器先于套接字池构造（池需要它作为关闭队列），
// 池就绪后通过 SetSweeper 回填，避免依赖环。
func Module() fx.Option {
	return fx.Module("reaper",
		fx.Provide(
			ConfigFromUnified,
			ProvideReaper,
		),
		fx.Invoke(registerLifecycle),
	)
}

type reaperParams struct {
	fx.In

	Config Config
	Clock  clock.Clock `optional:"true"`
}

type reaperResult struct {
	fx.Out

	Reaper     *Reaper
	Interface  interfaces.Reaper
	CloseQueue interfaces.CloseQueue
}

// ProvideReaper 提供回收器
func ProvideReaper(params reaperParams) (reaperResult, error) {
	r, err := New(params.Config, params.Clock)
	if err != nil {
		return reaperResult{}, err
	}
	return reaperResult{Reaper: r, Interface: r, CloseQueue: r}, nil
}

type lifecycleInput struct {
	fx.In
	LC          fx.Lifecycle
	Reaper      *Reaper
	Sweeper     interfaces.Sweeper
	Coordinator *lifecycle.Coordinator `optional:"true"`
}

func registerLifecycle(input lifecycleInput) {
	input.Reaper.SetSweeper(input.Sweeper)

	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := input.Reaper.Start(ctx); err != nil {
				return err
			}
			if input.Coordinator != nil {
				return input.Coordinator.AdvanceTo(lifecycle.PhaseReaperReady)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return input.Reaper.Stop(ctx)
		},
	})
}
