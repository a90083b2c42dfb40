// Package reaper 实现后台回收器
//
// 回收器持有池化连接的描述符表，周期性驱动池清扫，
// 并异步关闭池交给它的描述符，使持有池锁的一方从不在关闭上阻塞。
package reaper

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/lib/log"
	"github.com/dep2p/go-connp/pkg/types"
)

var logger = log.Logger("core/reaper")

var _ interfaces.Reaper = (*Reaper)(nil)

// reaperCtxKey 标记回收器自身发起的调用
type reaperCtxKey struct{}

// entry 描述符表项
type entry struct {
	conn     interfaces.PooledConn
	acquired bool
	pending  bool
}

// Stats 回收器统计
type Stats struct {
	Descriptors int
	InUse       int
	Pending     int

	Sweeps      uint64
	Closed      uint64
	CloseErrors uint64
	Wakes       uint64
	WakeDropped uint64
}

// Reaper 后台回收器
type Reaper struct {
	cfg   Config
	clock clock.Clock

	mu      sync.Mutex
	table   []entry
	free    []types.Descriptor
	sweeper interfaces.Sweeper

	closeCh chan types.Descriptor
	wakeCh  chan struct{}
	limiter *rate.Limiter

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	sweeps      atomic.Uint64
	closed      atomic.Uint64
	closeErrors atomic.Uint64
	wakes       atomic.Uint64
	wakeDropped atomic.Uint64
}

// New 创建回收器
func New(cfg Config, clk clock.Clock) (*Reaper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	r := &Reaper{
		cfg:     cfg,
		clock:   clk,
		table:   make([]entry, cfg.MaxDescriptors),
		free:    make([]types.Descriptor, 0, cfg.MaxDescriptors),
		closeCh: make(chan types.Descriptor, cfg.MaxDescriptors),
		wakeCh:  make(chan struct{}, 1),
		limiter: rate.NewLimiter(cfg.WakeRate, cfg.WakeBurst),
	}
	for d := cfg.MaxDescriptors - 1; d >= 0; d-- {
		r.free = append(r.free, types.Descriptor(d))
	}
	return r, nil
}

// SetSweeper 设置清扫对象（通常是套接字池）
func (r *Reaper) SetSweeper(s interfaces.Sweeper) {
	r.mu.Lock()
	r.sweeper = s
	r.mu.Unlock()
}

// ============================================================================
//                              描述符表
// ============================================================================

// Acquire 分配一个描述符槽位
func (r *Reaper) Acquire() (types.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.free)
	if n == 0 {
		return types.NoDescriptor, false
	}
	d := r.free[n-1]
	r.free = r.free[:n-1]
	r.table[d].acquired = true
	return d, true
}

// Install 将连接登记到已分配的描述符
func (r *Reaper) Install(d types.Descriptor, c interfaces.PooledConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validLocked(d) || !r.table[d].acquired {
		return
	}
	r.table[d].conn = c
}

// Release 注销描述符但不关闭连接
func (r *Reaper) Release(d types.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validLocked(d) || !r.table[d].acquired || r.table[d].pending {
		return
	}
	r.releaseLocked(d)
}

func (r *Reaper) validLocked(d types.Descriptor) bool {
	return d.Valid() && int(d) < len(r.table)
}

func (r *Reaper) releaseLocked(d types.Descriptor) {
	r.table[d] = entry{}
	r.free = append(r.free, d)
}

// EnqueueClose 将描述符交给回收器异步关闭
//
// 由持有池锁的一方调用，不得阻塞。描述符未登记连接、已在队列中、
// 或回收器未运行时拒绝。
func (r *Reaper) EnqueueClose(d types.Descriptor) bool {
	if !r.running.Load() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validLocked(d) {
		return false
	}
	e := &r.table[d]
	if e.conn == nil || e.pending {
		return false
	}

	select {
	case r.closeCh <- d:
		e.pending = true
		return true
	default:
		return false
	}
}

// Wake 通知回收器尽快执行一次清扫，受速率限制
func (r *Reaper) Wake() {
	if !r.running.Load() {
		return
	}
	if !r.limiter.Allow() {
		r.wakeDropped.Add(1)
		return
	}
	select {
	case r.wakeCh <- struct{}{}:
		r.wakes.Add(1)
	default:
		// 已有待处理的唤醒
	}
}

// Running 回收器是否在运行
func (r *Reaper) Running() bool {
	return r.running.Load()
}

// IsReaperContext 调用是否源自回收器自身
func (r *Reaper) IsReaperContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(reaperCtxKey{}).(*Reaper)
	return owner == r
}

// Context 返回回收器的运行 context，经由它发起的拦截调用一律放行
func (r *Reaper) Context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return context.WithValue(context.Background(), reaperCtxKey{}, r)
	}
	return r.ctx
}

// ============================================================================
//                              后台循环
// ============================================================================

// Start 启动后台循环
func (r *Reaper) Start(_ context.Context) error {
	r.mu.Lock()
	if r.sweeper == nil {
		r.mu.Unlock()
		return ErrNoSweeper
	}
	if r.running.Load() {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	// 生命周期 ctx 在 OnStart 返回后即失效，后台循环使用独立 context
	ctx, cancel := context.WithCancel(context.Background())
	r.ctx = context.WithValue(ctx, reaperCtxKey{}, r)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)
	r.mu.Unlock()

	go r.loop(r.ctx)

	logger.Info("回收器已启动",
		"interval", r.cfg.SweepInterval,
		"descriptors", r.cfg.MaxDescriptors)
	return nil
}

func (r *Reaper) loop(ctx context.Context) {
	defer close(r.done)

	ticker := r.clock.Ticker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-r.closeCh:
			r.closeDescriptor(d)
		case <-r.wakeCh:
			r.sweep()
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	r.mu.Lock()
	s := r.sweeper
	r.mu.Unlock()

	s.Sweep()
	r.sweeps.Add(1)
}

// closeDescriptor 关闭描述符上的连接并释放表项
func (r *Reaper) closeDescriptor(d types.Descriptor) error {
	r.mu.Lock()
	if !r.validLocked(d) {
		r.mu.Unlock()
		return nil
	}
	c := r.table[d].conn
	r.releaseLocked(d)
	r.mu.Unlock()

	if c == nil {
		return nil
	}
	r.closed.Add(1)
	if err := c.Close(); err != nil {
		r.closeErrors.Add(1)
		logger.Debug("关闭池化连接失败", "desc", int(d), "conn", c.ID(), "err", err)
		return err
	}
	return nil
}

// Stop 停止后台循环并清空池
//
// 池自有连接全部关闭；借出中的连接只注销描述符，归借用方所有。
func (r *Reaper) Stop(_ context.Context) error {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return nil
	}
	r.running.Store(false)
	cancel, done, s := r.cancel, r.done, r.sweeper
	r.mu.Unlock()

	cancel()
	<-done

	var err error

	// 循环退出前已入队但未处理的描述符
	for drained := false; !drained; {
		select {
		case d := <-r.closeCh:
			err = multierr.Append(err, r.closeDescriptor(d))
		default:
			drained = true
		}
	}

	closeDescs, lentDescs := s.Drain()
	for _, d := range closeDescs {
		err = multierr.Append(err, r.closeDescriptor(d))
	}
	for _, d := range lentDescs {
		r.Release(d)
	}

	// 已登记但不在池中的描述符仍归回收器所有
	var stray []types.Descriptor
	r.mu.Lock()
	for d := range r.table {
		if r.table[d].acquired {
			stray = append(stray, types.Descriptor(d))
		}
	}
	r.mu.Unlock()
	for _, d := range stray {
		err = multierr.Append(err, r.closeDescriptor(d))
	}
	if len(stray) > 0 {
		logger.Warn("拆除时存在未入池的描述符", "count", len(stray))
	}

	logger.Info("回收器已停止",
		"closed", len(closeDescs),
		"lent", len(lentDescs),
		"sweeps", r.sweeps.Load())
	return err
}

// Stats 返回回收器统计
func (r *Reaper) Stats() Stats {
	r.mu.Lock()
	inUse, pending := 0, 0
	for i := range r.table {
		if r.table[i].acquired {
			inUse++
		}
		if r.table[i].pending {
			pending++
		}
	}
	r.mu.Unlock()

	return Stats{
		Descriptors: len(r.table),
		InUse:       inUse,
		Pending:     pending,
		Sweeps:      r.sweeps.Load(),
		Closed:      r.closed.Load(),
		CloseErrors: r.closeErrors.Load(),
		Wakes:       r.wakes.Load(),
		WakeDropped: r.wakeDropped.Load(),
	}
}
