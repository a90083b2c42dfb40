package sockpool

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/pkg/interfaces"
)

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("sockpool",
		fx.Provide(
			ConfigFromUnified,
			ProvidePool,
		),
		fx.Invoke(registerLifecycle),
	)
}

// poolParams 套接字池依赖
type poolParams struct {
	fx.In

	Config   Config
	Closer   interfaces.CloseQueue
	Registry interfaces.Registry `optional:"true"`
	Clock    clock.Clock         `optional:"true"`
}

// poolResult 套接字池导出
type poolResult struct {
	fx.Out

	Pool       *Pool
	SocketPool interfaces.SocketPool
	Sweeper    interfaces.Sweeper
}

// ProvidePool 提供套接字池
func ProvidePool(params poolParams) (poolResult, error) {
	p, err := New(params.Config, params.Closer, params.Registry, params.Clock)
	if err != nil {
		return poolResult{}, err
	}
	return poolResult{Pool: p, SocketPool: p, Sweeper: p}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC          fx.Lifecycle
	Pool        *Pool
	Coordinator *lifecycle.Coordinator `optional:"true"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("套接字池就绪",
				"capacity", input.Pool.Capacity(),
				"spin", input.Pool.cfg.Spin,
				"lru", input.Pool.cfg.EnableLRU)
			if input.Coordinator != nil {
				return input.Coordinator.AdvanceTo(lifecycle.PhasePoolReady)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			// 正常拆除时回收器已清空池；回收器启动失败回滚时在此兜底
			closeDescs, lentDescs := input.Pool.Drain()
			if len(closeDescs)+len(lentDescs) > 0 {
				logger.Warn("拆除时池中仍有已登记连接",
					"close", len(closeDescs),
					"lent", len(lentDescs))
			}
			return nil
		},
	})
}
