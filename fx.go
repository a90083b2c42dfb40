package connp

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-connp/config"
	"github.com/dep2p/go-connp/internal/core/controller"
	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/internal/core/metrics"
	"github.com/dep2p/go-connp/internal/core/reaper"
	"github.com/dep2p/go-connp/internal/core/registry"
	"github.com/dep2p/go-connp/internal/core/shim"
	"github.com/dep2p/go-connp/internal/core/sockpool"
	"github.com/dep2p/go-connp/pkg/lib/log"
)

var fxLogger = log.Logger("connp/fx")

// buildFxApp 构建 Fx 应用
//
// 模块顺序即启动顺序，OnStop 按相反顺序执行：
//
//	lifecycle → grace → registry → sockpool → reaper → controller → shim → metrics
//
// 因此停止时拦截层最先恢复，宽限期在登记表之后、生命周期终态之前执行。
func buildFxApp(o *options, sub *Subsystem) (*fx.App, error) {
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	modules := []fx.Option{
		fx.Supply(o.config),
		fx.Provide(func() clock.Clock { return o.clock }),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 1. 生命周期协调器 + 宽限期
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		lifecycle.Module(),
		graceModule(o.config.Lifecycle.GracePeriod.Duration(), o.clock),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 2. 核心组件（严格按依赖顺序）
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		registry.Module(),
		sockpool.Module(),
		reaper.Module(),
		controller.Module(),
		shim.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 指标
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, metrics.Module)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectComponents(sub)))

	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		fxLogger.Error("构建 Fx 应用失败", "error", err)
		return nil, err
	}
	return app, nil
}

// graceModule 拆除完成后等待固定宽限期
//
// 以独立模块注册，使其钩子排在各组件之前：OnStop 在登记表停止之后执行。
func graceModule(period time.Duration, clk clock.Clock) fx.Option {
	return fx.Module("grace",
		fx.Invoke(func(lc fx.Lifecycle) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return waitGrace(ctx, clk, period)
				},
			})
		}),
	)
}

func waitGrace(ctx context.Context, clk clock.Clock, period time.Duration) error {
	if period <= 0 {
		return nil
	}
	fxLogger.Debug("等待宽限期", "period", period)
	t := clk.Timer(period)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// componentParams 子系统组件注入参数
type componentParams struct {
	fx.In

	Config      *config.Config
	Coordinator *lifecycle.Coordinator
	Registry    *registry.Registry
	Pool        *sockpool.Pool
	Reaper      *reaper.Reaper
	Controller  *controller.Controller
	Shim        *shim.Shim
	Gatherer    *prometheus.Registry
}

// injectComponents 创建组件注入函数
func injectComponents(sub *Subsystem) interface{} {
	return func(p componentParams) {
		sub.config = p.Config
		sub.coordinator = p.Coordinator
		sub.registry = p.Registry
		sub.pool = p.Pool
		sub.reaper = p.Reaper
		sub.controller = p.Controller
		sub.shim = p.Shim
		sub.gatherer = p.Gatherer
	}
}
