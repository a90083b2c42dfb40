package types

import "fmt"

// ============================================================================
//                              Eligibility - 目标资格
// ============================================================================

// Eligibility 目标地址的池化资格
type Eligibility int

const (
	// EligibilityUnknown 尚未观察到完整的连接周期
	EligibilityUnknown Eligibility = iota
	// EligibilityPositive 可池化
	EligibilityPositive
	// EligibilityPassive 曾观察到建连失败，不再池化（粘滞，直到外部重置）
	EligibilityPassive
)

// String 返回资格的字符串表示
func (e Eligibility) String() string {
	switch e {
	case EligibilityUnknown:
		return "unknown"
	case EligibilityPositive:
		return "positive"
	case EligibilityPassive:
		return "passive"
	default:
		return fmt.Sprintf("eligibility(%d)", int(e))
	}
}

// ============================================================================
//                              CounterKind - 计数器类型
// ============================================================================

// CounterKind 目标统计计数器类型
type CounterKind int

const (
	// CounterAll 观察到的连接总数
	CounterAll CounterKind = iota
	// CounterIdle 清扫时发现的空闲连接数
	CounterIdle
	// CounterHit 连接命中池
	CounterHit
	// CounterMiss 连接未命中池
	CounterMiss
)

// String 返回计数器类型的字符串表示
func (k CounterKind) String() string {
	switch k {
	case CounterAll:
		return "all"
	case CounterIdle:
		return "idle"
	case CounterHit:
		return "hit"
	case CounterMiss:
		return "miss"
	default:
		return fmt.Sprintf("counter(%d)", int(k))
	}
}

// ============================================================================
//                              拦截结果
// ============================================================================

// ConnectResult 连接拦截结果
type ConnectResult int

const (
	// ConnectMiss 未命中，调用方继续正常建连
	ConnectMiss ConnectResult = iota
	// ConnectHit 命中（阻塞调用方），连接已建立
	ConnectHit
	// ConnectHitNonBlocking 命中（非阻塞调用方），连接已建立
	ConnectHitNonBlocking
)

// Hit 是否命中
func (r ConnectResult) Hit() bool {
	return r == ConnectHit || r == ConnectHitNonBlocking
}

// String 返回结果的字符串表示
func (r ConnectResult) String() string {
	switch r {
	case ConnectMiss:
		return "miss"
	case ConnectHit:
		return "hit"
	case ConnectHitNonBlocking:
		return "hit_nonblocking"
	default:
		return fmt.Sprintf("connect(%d)", int(r))
	}
}

// CloseResult 关闭拦截结果
type CloseResult int

const (
	// CloseNotPooled 未池化，调用方执行正常关闭
	CloseNotPooled CloseResult = iota
	// ClosePooled 已池化，调用方只移除描述符映射
	ClosePooled
)

// String 返回结果的字符串表示
func (r CloseResult) String() string {
	if r == ClosePooled {
		return "pooled"
	}
	return "not_pooled"
}

// ============================================================================
//                              套接字属性
// ============================================================================

// SocketState 调用方套接字状态
type SocketState int

const (
	// SocketUnconnected 已创建，未连接
	SocketUnconnected SocketState = iota
	// SocketConnecting 发起了连接但尚未建立（含建连失败）
	SocketConnecting
	// SocketEstablished 已建立
	SocketEstablished
	// SocketClosed 已关闭
	SocketClosed
)

// String 返回状态的字符串表示
func (s SocketState) String() string {
	switch s {
	case SocketUnconnected:
		return "unconnected"
	case SocketConnecting:
		return "connecting"
	case SocketEstablished:
		return "established"
	case SocketClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Protocol 套接字协议
type Protocol int

const (
	// ProtocolTCP TCP
	ProtocolTCP Protocol = iota
	// ProtocolUDP UDP
	ProtocolUDP
)

// Family 地址族
type Family int

const (
	// FamilyIPv4 IPv4
	FamilyIPv4 Family = iota
	// FamilyIPv6 IPv6
	FamilyIPv6
)

// Role 套接字角色
type Role int

const (
	// RoleUnset 未确定
	RoleUnset Role = iota
	// RoleClient 客户端（主动连接方）
	RoleClient
	// RoleServer 服务端（accept 得到）
	RoleServer
)

// ============================================================================
//                              Descriptor - 回收器描述符
// ============================================================================

// Descriptor 回收器持有池化连接的句柄
type Descriptor int

// NoDescriptor 尚未交给回收器
const NoDescriptor Descriptor = -1

// Valid 是否为有效描述符
func (d Descriptor) Valid() bool {
	return d >= 0
}

// SweepResult 一次清扫的结果
type SweepResult struct {
	// Scanned 遍历的已分配槽位数
	Scanned int
	// Dead 连接已不处于建立状态而回收的槽位数
	Dead int
	// Idle 空闲超时而回收的槽位数
	Idle int
	// Passive 目标被降级为 passive 而回收的槽位数
	Passive int
	// Revoked 目标不再被 ACL 允许而回收的槽位数
	Revoked int
	// Deferred 关闭队列拒绝而保留到下一轮的槽位数
	Deferred int
}

// Reclaimed 回收的槽位总数
func (r SweepResult) Reclaimed() int {
	return r.Dead + r.Idle + r.Passive + r.Revoked
}
