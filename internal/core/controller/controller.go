// Package controller 实现连接控制器
//
// 控制器位于拦截点与套接字池之间，按目标资格决定每次建连是否
// 从池中借出连接、每次拆除是否把连接放回池中。所有判断都以失败关闭：
// 任何前置条件不满足都退回原始行为，从不让本应成功的调用失败。
package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/lib/log"
	"github.com/dep2p/go-connp/pkg/types"
)

var logger = log.Logger("core/controller")

var _ interfaces.Controller = (*Controller)(nil)

// Stats 控制器统计
type Stats struct {
	Connects  uint64
	Hits      uint64
	Misses    uint64
	Closes    uint64
	Pooled    uint64
	Returned  uint64
	Fallbacks uint64
	Demotions uint64
}

// Controller 连接控制器
type Controller struct {
	// mu 守护子系统生命周期：拦截调用持读锁，启停持写锁
	mu      sync.RWMutex
	running bool

	pool   interfaces.SocketPool
	reg    interfaces.Registry
	reaper interfaces.Reaper

	connects  atomic.Uint64
	hits      atomic.Uint64
	misses    atomic.Uint64
	closes    atomic.Uint64
	pooled    atomic.Uint64
	returned  atomic.Uint64
	fallbacks atomic.Uint64
	demotions atomic.Uint64
}

// New 创建连接控制器
func New(pool interfaces.SocketPool, reg interfaces.Registry, reaper interfaces.Reaper) (*Controller, error) {
	if pool == nil || reg == nil || reaper == nil {
		return nil, ErrMissingDependency
	}
	return &Controller{
		pool:   pool,
		reg:    reg,
		reaper: reaper,
	}, nil
}

// Start 开放拦截
func (c *Controller) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	logger.Info("连接控制器已开放")
}

// Close 关闭拦截
//
// 获取写锁，返回时所有进行中的拦截调用均已退出。
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	logger.Info("连接控制器已关闭")
	return nil
}

// Running 控制器是否开放
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// admitLocked 通用前置条件，调用方必须持有读锁
func (c *Controller) admitLocked(ctx context.Context, sock interfaces.Socket) bool {
	if !c.running || sock == nil {
		return false
	}
	if !c.reaper.Running() || c.reaper.IsReaperContext(ctx) {
		return false
	}
	return sock.Protocol() == types.ProtocolTCP && sock.Family() == types.FamilyIPv4
}

// ============================================================================
//                              建连
// ============================================================================

// OnConnect 拦截连接建立
//
// 目标为 positive 时尝试从池中借出连接并嫁接到调用方套接字。
// unknown/passive 目标一律 miss，走正常建连；unknown 只能经由关闭路径晋升。
func (c *Controller) OnConnect(ctx context.Context, sock interfaces.Socket, dest types.Destination) types.ConnectResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.admitLocked(ctx, sock) {
		return types.ConnectMiss
	}
	if sock.State() != types.SocketUnconnected || !c.reg.Allowed(dest) {
		return types.ConnectMiss
	}

	c.connects.Add(1)
	c.reg.Increment(dest, types.CounterAll)
	sock.MarkClient()

	if c.reg.Eligibility(dest) != types.EligibilityPositive {
		return types.ConnectMiss
	}

	if _, err := sock.ResolveLocal(dest); err != nil {
		logger.Debug("解析本地地址失败，走正常建连", "dest", dest, "err", err)
		return types.ConnectMiss
	}

	conn, ok := c.pool.Borrow(dest)
	if !ok {
		c.misses.Add(1)
		c.reg.Increment(dest, types.CounterMiss)
		return types.ConnectMiss
	}

	sock.Graft(conn)
	c.hits.Add(1)
	c.reg.Increment(dest, types.CounterHit)

	if sock.Nonblocking() {
		return types.ConnectHitNonBlocking
	}
	return types.ConnectHit
}

// ============================================================================
//                              拆除
// ============================================================================

// OnClose 拦截连接拆除
//
// 返回 ClosePooled 时连接已交给池，调用方只解除描述符映射；
// 否则调用方执行原始关闭。
func (c *Controller) OnClose(ctx context.Context, sock interfaces.Socket) types.CloseResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.admitLocked(ctx, sock) || sock.Role() != types.RoleClient {
		return types.CloseNotPooled
	}
	dest, ok := sock.Destination()
	if !ok {
		return types.CloseNotPooled
	}
	// 仍有其他描述符引用该连接，本次关闭只减少引用
	if sock.RefCount() != 1 {
		return types.CloseNotPooled
	}

	c.closes.Add(1)
	conn := sock.Conn()

	if c.reg.TakeCloseNow(dest) {
		return c.fallback(dest, conn, "close_now")
	}

	switch sock.State() {
	case types.SocketEstablished:
	case types.SocketConnecting:
		c.reg.SetEligibility(dest, types.EligibilityPassive)
		c.demotions.Add(1)
		c.reaper.Wake()
		logger.Debug("目标未建立即关闭，降级为 passive", "dest", dest)
		return c.fallback(dest, conn, "not_established")
	default:
		return c.fallback(dest, conn, "state")
	}

	if conn == nil || !conn.Established() {
		return c.fallback(dest, conn, "dead")
	}
	if c.reg.Eligibility(dest) == types.EligibilityPassive || !c.reg.Allowed(dest) {
		return c.fallback(dest, conn, "ineligible")
	}

	// 借出的连接回到池中
	if c.pool.Release(dest, conn) {
		sock.Detach()
		c.returned.Add(1)
		return types.ClosePooled
	}

	if !c.insert(dest, conn) {
		return c.fallback(dest, conn, "pool_full")
	}

	// 只有 unknown 能晋升；放入期间被并发降级的目标取回连接走正常关闭
	if !c.reg.Promote(dest) {
		if desc, ok := c.pool.Withdraw(dest, conn); ok {
			if desc.Valid() {
				c.reaper.Release(desc)
			}
			return c.fallback(dest, conn, "demoted")
		}
		// 槽位已被借出或回收，所有权不在调用方
		logger.Debug("降级目标的连接已离开池", "dest", dest)
	}
	sock.Detach()
	c.pooled.Add(1)
	return types.ClosePooled
}

// insert 将连接登记到回收器并放入池中
func (c *Controller) insert(dest types.Destination, conn interfaces.PooledConn) bool {
	desc, ok := c.reaper.Acquire()
	if !ok {
		return false
	}
	c.reaper.Install(desc, conn)

	if !c.pool.Insert(dest, conn) {
		c.reaper.Release(desc)
		return false
	}
	// 放入后到登记前连接可能已被借出并丢弃，所有权已随之转移
	if !c.pool.Attach(dest, conn, desc) {
		c.reaper.Release(desc)
	}
	return true
}

// fallback 退回原始关闭
//
// 借出中的连接从池中移除并注销描述符，所有权留在调用方。
func (c *Controller) fallback(dest types.Destination, conn interfaces.PooledConn, reason string) types.CloseResult {
	c.fallbacks.Add(1)
	if conn != nil {
		if desc, ok := c.pool.Discard(dest, conn); ok && desc.Valid() {
			c.reaper.Release(desc)
		}
	}
	if logger.Enabled(log.LevelDebug) {
		logger.Debug("关闭走正常路径", "dest", dest, "reason", reason)
	}
	return types.CloseNotPooled
}

// Stats 返回控制器统计
func (c *Controller) Stats() Stats {
	return Stats{
		Connects:  c.connects.Load(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Closes:    c.closes.Load(),
		Pooled:    c.pooled.Load(),
		Returned:  c.returned.Load(),
		Fallbacks: c.fallbacks.Load(),
		Demotions: c.demotions.Load(),
	}
}
