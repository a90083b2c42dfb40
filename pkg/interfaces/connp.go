package interfaces

import (
	"context"
	"net/netip"

	"github.com/dep2p/go-connp/pkg/types"
)

// PooledConn 可池化的已建立连接
//
// 同一时刻只有一个所有者：借用方、池、或回收器的待关闭队列。
type PooledConn interface {
	// ID 进程内唯一的连接标识
	ID() uint64

	// Established 连接是否仍处于 TCP ESTABLISHED 状态
	Established() bool

	// Close 关闭底层连接
	Close() error
}

// Registry 目标资格与统计登记表
type Registry interface {
	// Allowed 目标是否在 ACL 允许范围内
	Allowed(dest types.Destination) bool

	// Eligibility 返回目标资格
	Eligibility(dest types.Destination) types.Eligibility

	// SetEligibility 设置目标资格
	SetEligibility(dest types.Destination, e types.Eligibility)

	// Promote 仅当目标仍为 unknown 时晋升为 positive
	//
	// 返回 false 表示目标已被降级或不在允许范围内。
	Promote(dest types.Destination) bool

	// TakeCloseNow 读取并清除 close_now 标志
	TakeCloseNow(dest types.Destination) bool

	// Increment 递增目标计数器
	Increment(dest types.Destination, kind types.CounterKind)
}

// CloseQueue 回收器的待关闭队列
type CloseQueue interface {
	// EnqueueClose 将描述符交给回收器异步关闭
	//
	// 不得阻塞；返回 false 表示队列拒绝（调用方保留所有权）。
	EnqueueClose(d types.Descriptor) bool
}

// Reaper 后台回收器
type Reaper interface {
	CloseQueue

	// Acquire 分配一个描述符槽位
	Acquire() (types.Descriptor, bool)

	// Install 将连接登记到描述符
	Install(d types.Descriptor, c PooledConn)

	// Release 注销描述符但不关闭连接（所有权交还调用方）
	Release(d types.Descriptor)

	// Wake 通知回收器尽快执行一次清扫
	Wake()

	// Running 回收器是否在运行
	Running() bool

	// IsReaperContext 调用是否源自回收器自身
	IsReaperContext(ctx context.Context) bool
}

// Sweeper 回收器驱动的池操作
type Sweeper interface {
	// Sweep 回收失效或空闲超时的槽位
	Sweep() types.SweepResult

	// Drain 清空池：返回需要关闭的描述符和仍被借出的描述符
	Drain() (closeDescs, lentDescs []types.Descriptor)
}

// SocketPool 套接字池
type SocketPool interface {
	Sweeper

	// Borrow 借出一个到目标的已建立连接
	Borrow(dest types.Destination) (PooledConn, bool)

	// Release 归还借出的连接
	Release(dest types.Destination, c PooledConn) bool

	// Insert 将连接放入池中
	Insert(dest types.Destination, c PooledConn) bool

	// Attach 记录连接的回收器描述符
	Attach(dest types.Destination, c PooledConn, d types.Descriptor) bool

	// Discard 移除借出中的槽位，返回其描述符
	Discard(dest types.Destination, c PooledConn) (types.Descriptor, bool)

	// Withdraw 取回刚放入且未借出的槽位，返回其描述符
	Withdraw(dest types.Destination, c PooledConn) (types.Descriptor, bool)
}

// Socket 被拦截的调用方套接字
type Socket interface {
	// Protocol 套接字协议
	Protocol() types.Protocol

	// Family 地址族
	Family() types.Family

	// State 套接字状态
	State() types.SocketState

	// Role 套接字角色
	Role() types.Role

	// Nonblocking 是否为非阻塞套接字
	Nonblocking() bool

	// Destination 已连接或正在连接的目标
	Destination() (types.Destination, bool)

	// ResolveLocal 解析本地地址，未绑定时隐式绑定
	ResolveLocal(dest types.Destination) (netip.AddrPort, error)

	// RefCount 共享底层连接的描述符数
	RefCount() int

	// Conn 当前持有的连接
	Conn() PooledConn

	// Graft 丢弃套接字自身的待建连接并接管池中连接
	Graft(c PooledConn)

	// Detach 解除套接字与连接的关联，但不销毁连接
	Detach() PooledConn

	// MarkClient 标记为客户端套接字
	MarkClient()
}

// Controller 连接控制器，拦截点的唯一入口
type Controller interface {
	// OnConnect 拦截连接建立
	OnConnect(ctx context.Context, sock Socket, dest types.Destination) types.ConnectResult

	// OnClose 拦截连接拆除
	OnClose(ctx context.Context, sock Socket) types.CloseResult
}
