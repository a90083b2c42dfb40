package connp

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-connp/config"
	"github.com/dep2p/go-connp/internal/core/controller"
	"github.com/dep2p/go-connp/internal/core/lifecycle"
	"github.com/dep2p/go-connp/internal/core/reaper"
	"github.com/dep2p/go-connp/internal/core/registry"
	"github.com/dep2p/go-connp/internal/core/shim"
	"github.com/dep2p/go-connp/internal/core/sockpool"
	"github.com/dep2p/go-connp/pkg/lib/log"
)

var logger = log.Logger("connp")

// Stats 子系统统计快照
type Stats struct {
	Phase        lifecycle.Phase
	Pool         sockpool.Stats
	Reaper       reaper.Stats
	Controller   controller.Stats
	Shim         shim.Stats
	Destinations []registry.Entry
}

// Subsystem 连接复用子系统
//
// 一个进程内通常只有一个实例。New 只构建组件图，Start 按顺序初始化，
// Stop 按相反顺序拆除；停止后不可再次启动。
type Subsystem struct {
	mu      sync.Mutex
	app     *fx.App
	started bool
	closed  bool

	config      *config.Config
	coordinator *lifecycle.Coordinator
	registry    *registry.Registry
	pool        *sockpool.Pool
	reaper      *reaper.Reaper
	controller  *controller.Controller
	shim        *shim.Shim
	gatherer    *prometheus.Registry
}

// New 创建子系统
//
// 配置校验和依赖图构建在此完成，组件的后台任务在 Start 中启动。
func New(opts ...Option) (*Subsystem, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	sub := &Subsystem{}
	app, err := buildFxApp(o, sub)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	sub.app = app
	return sub, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Subsystem, error) {
	sub, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := sub.Start(ctx); err != nil {
		return nil, fmt.Errorf("start subsystem: %w", err)
	}
	return sub, nil
}

// Start 启动子系统
//
// 依次初始化 Registry → Pool → Reaper → Controller → Shim。
// 任一步失败时，已启动的组件按相反顺序停止，子系统保持未安装状态。
func (s *Subsystem) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	logger.Info("正在启动连接复用子系统",
		"capacity", s.config.Pool.Capacity,
		"lockType", s.config.Pool.LockType)

	startCtx, cancel := context.WithTimeout(ctx, s.config.Lifecycle.StartTimeout.Duration())
	defer cancel()

	// fx 在 OnStart 失败时自动回滚已执行的钩子
	if err := s.app.Start(startCtx); err != nil {
		s.closed = true
		logger.Error("子系统初始化失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	s.started = true
	logger.Info("连接复用子系统已启动", "phase", s.coordinator.Phase())
	return nil
}

// Stop 停止子系统
//
// 先恢复拦截层，再停止控制器、回收器、池、登记表，最后等待宽限期。
func (s *Subsystem) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.started {
		return ErrNotStarted
	}

	logger.Info("正在停止连接复用子系统")

	stopCtx, cancel := context.WithTimeout(ctx, s.config.Lifecycle.StopTimeout.Duration())
	defer cancel()

	err := s.app.Stop(stopCtx)
	s.started = false
	s.closed = true
	if err != nil {
		logger.Error("停止子系统失败", "error", err)
		return fmt.Errorf("stop fx app: %w", err)
	}

	logger.Info("连接复用子系统已停止")
	return nil
}

// ExitPrepare 将所有仍打开的客户端套接字交给池
//
// 进程退出前调用，之后的 Stop 会关闭池中连接。返回入池数量。
func (s *Subsystem) ExitPrepare() (int, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return 0, ErrNotStarted
	}
	return s.shim.ExitPrepare()
}

// Dialer 返回经过拦截层的拨号器
func (s *Subsystem) Dialer() *shim.Dialer {
	return s.shim.Dialer()
}

// NewSocket 创建未连接的拦截套接字
func (s *Subsystem) NewSocket(opts ...shim.SocketOption) *shim.Socket {
	return s.shim.NewSocket(opts...)
}

// Registry 返回目标登记表
func (s *Subsystem) Registry() *registry.Registry {
	return s.registry
}

// Phase 返回当前生命周期阶段
func (s *Subsystem) Phase() lifecycle.Phase {
	return s.coordinator.Phase()
}

// WaitFor 等待子系统到达指定阶段
func (s *Subsystem) WaitFor(ctx context.Context, phase lifecycle.Phase) error {
	return s.coordinator.WaitFor(ctx, phase)
}

// Gatherer 返回子系统的 Prometheus 注册表
func (s *Subsystem) Gatherer() prometheus.Gatherer {
	return s.gatherer
}

// Config 返回子系统配置的副本
func (s *Subsystem) Config() *config.Config {
	return config.CloneConfig(s.config)
}

// Stats 返回统计快照
func (s *Subsystem) Stats() Stats {
	return Stats{
		Phase:        s.coordinator.Phase(),
		Pool:         s.pool.Stats(),
		Reaper:       s.reaper.Stats(),
		Controller:   s.controller.Stats(),
		Shim:         s.shim.Stats(),
		Destinations: s.registry.Snapshot(),
	}
}
