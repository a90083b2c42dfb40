// Package lifecycle 提供连接复用子系统的生命周期协调器
//
// 初始化严格按依赖顺序推进：
//
//	Registry → Pool → Reaper → Controller → Shim
//
// 拆除按相反顺序：先恢复拦截点（不再有新调用进入），
// 再依次停止 Controller、Reaper、Pool、Registry，最后等待一个固定的等待期。
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-connp/pkg/lib/log"
)

var logger = log.Logger("core/lifecycle")

// ============================================================================
//                              阶段定义
// ============================================================================

// Phase 生命周期阶段
type Phase int

const (
	// PhaseCreated 子系统已创建，未启动
	PhaseCreated Phase = iota

	// ═══════════════════════════ 初始化 ═══════════════════════════

	// PhaseRegistryReady 目标登记表就绪
	PhaseRegistryReady

	// PhasePoolReady 套接字池就绪
	PhasePoolReady

	// PhaseReaperReady 回收器已运行
	PhaseReaperReady

	// PhaseControllerReady 连接控制器已开放
	PhaseControllerReady

	// PhaseRunning 拦截点已安装，稳态运行
	PhaseRunning

	// ═══════════════════════════ 拆除 ═══════════════════════════

	// PhaseStopping 拦截点已恢复，正在拆除
	PhaseStopping

	// PhaseStopped 拆除完成
	PhaseStopped
)

// String 返回阶段字符串表示
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseRegistryReady:
		return "registry_ready"
	case PhasePoolReady:
		return "pool_ready"
	case PhaseReaperReady:
		return "reaper_ready"
	case PhaseControllerReady:
		return "controller_ready"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// ============================================================================
//                              生命周期协调器
// ============================================================================

// Coordinator 生命周期协调器
//
//  1. 追踪当前生命周期阶段
//  2. 提供阶段 gate（等待特定阶段完成）
//  3. 通知阶段变更
//  4. 确保阶段按序推进
type Coordinator struct {
	mu sync.RWMutex

	phase Phase

	// key: 阶段, value: 已关闭的 channel 表示该阶段已完成
	phaseSignals map[Phase]chan struct{}

	onPhaseChange []func(old, new Phase)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator 创建生命周期协调器
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		phase:        PhaseCreated,
		phaseSignals: make(map[Phase]chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}

	for p := PhaseCreated; p <= PhaseStopped; p++ {
		c.phaseSignals[p] = make(chan struct{})
	}
	close(c.phaseSignals[PhaseCreated])

	return c
}

// Phase 返回当前阶段
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// AdvanceTo 推进到指定阶段
//
// 只能向前推进，会自动完成中间所有阶段的信号。
func (c *Coordinator) AdvanceTo(target Phase) error {
	c.mu.Lock()

	if target < c.phase {
		current := c.phase
		c.mu.Unlock()
		return fmt.Errorf("cannot advance backwards: current=%s target=%s", current, target)
	}
	if target == c.phase {
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.phaseSignals[target]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("invalid phase: %d", target)
	}

	old := c.phase
	for p := c.phase; p <= target; p++ {
		ch := c.phaseSignals[p]
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	c.phase = target

	callbacks := make([]func(old, new Phase), len(c.onPhaseChange))
	copy(callbacks, c.onPhaseChange)
	c.mu.Unlock()

	logger.Info("生命周期阶段推进", "from", old.String(), "to", target.String())

	for _, cb := range callbacks {
		cb(old, target)
	}
	return nil
}

// WaitFor 等待指定阶段完成
func (c *Coordinator) WaitFor(ctx context.Context, phase Phase) error {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("invalid phase: %d", phase)
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

// WaitForWithTimeout 带超时等待指定阶段完成
func (c *Coordinator) WaitForWithTimeout(phase Phase, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	return c.WaitFor(ctx, phase)
}

// IsCompleted 检查指定阶段是否已完成
func (c *Coordinator) IsCompleted(phase Phase) bool {
	c.mu.RLock()
	ch := c.phaseSignals[phase]
	c.mu.RUnlock()

	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// OnPhaseChange 注册阶段变更回调
//
// 回调在推进阶段的 goroutine 中同步执行，不得阻塞。
func (c *Coordinator) OnPhaseChange(callback func(old, new Phase)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhaseChange = append(c.onPhaseChange, callback)
}

// Stop 停止协调器，解除所有等待
func (c *Coordinator) Stop() {
	c.cancel()
}
