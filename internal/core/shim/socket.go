package shim

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-connp/internal/core/tcpconn"
	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/types"
)

// ShutdownHow Shutdown 的方向
type ShutdownHow int

const (
	// ShutRead 关闭读方向
	ShutRead ShutdownHow = iota
	// ShutWrite 关闭写方向
	ShutWrite
	// ShutReadWrite 关闭双向
	ShutReadWrite
)

// file 多个描述符共享的底层套接字
type file struct {
	mu sync.Mutex

	refs        int
	network     string
	nonblocking bool

	state  types.SocketState
	role   types.Role
	family types.Family
	target netip.AddrPort
	local  netip.AddrPort
	conn   interfaces.PooledConn

	dialDone   chan struct{}
	dialErr    error
	cancelDial context.CancelFunc
}

// tcpHolder 可取得底层 TCP 连接的句柄
type tcpHolder interface {
	TCP() *net.TCPConn
}

// Socket 被拦截的客户端套接字（一个描述符）
type Socket struct {
	shim   *Shim
	f      *file
	closed atomic.Bool
}

var (
	_ net.Conn          = (*Socket)(nil)
	_ interfaces.Socket = (*Socket)(nil)
)

// SocketOption 套接字选项
type SocketOption func(*file)

// WithNonblocking 非阻塞建连：未命中时在后台拨号，Connect 返回 ErrInProgress
func WithNonblocking(nonblocking bool) SocketOption {
	return func(f *file) { f.nonblocking = nonblocking }
}

// WithNetwork 设置网络类型：tcp、tcp4 或 tcp6
func WithNetwork(network string) SocketOption {
	return func(f *file) { f.network = network }
}

// ============================================================================
//                              拦截点
// ============================================================================

// Connect 建立连接
//
// 命中时嫁接池中连接并立即返回 nil（非阻塞套接字同样立即成功）。
// 阻塞拨号失败时套接字停留在 connecting 状态，随后的 Close 会让目标降级。
func (s *Socket) Connect(ctx context.Context, address string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	f := s.f
	ap, err := s.shim.resolve(ctx, f.network, address)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.state != types.SocketUnconnected {
		state := f.state
		f.mu.Unlock()
		if state == types.SocketConnecting && f.nonblocking {
			return ErrInProgress
		}
		return ErrAlreadyConnected
	}
	f.target = ap
	f.family = familyOf(ap.Addr())
	f.mu.Unlock()

	s.shim.connects.Add(1)
	if s.shim.Installed() {
		if dest, err := types.NewDestination(ap); err == nil {
			if s.shim.ctrl.OnConnect(ctx, s, dest).Hit() {
				s.shim.hits.Add(1)
				return nil
			}
		}
	}
	return s.dial(ctx, ap)
}

func familyOf(a netip.Addr) types.Family {
	if a.Unmap().Is4() {
		return types.FamilyIPv4
	}
	return types.FamilyIPv6
}

func (s *Socket) dial(ctx context.Context, ap netip.AddrPort) error {
	f := s.f
	network := "tcp6"
	if ap.Addr().Unmap().Is4() {
		network = "tcp4"
	}

	f.mu.Lock()
	f.state = types.SocketConnecting
	d := s.shim.dialerFor(f.local)
	if !f.nonblocking {
		f.mu.Unlock()
		s.shim.dials.Add(1)
		nc, err := d.DialContext(ctx, network, ap.String())
		return s.finishDial(nc, err)
	}

	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	f.cancelDial = cancel
	f.dialDone = done
	f.mu.Unlock()

	s.shim.dials.Add(1)
	go func() {
		defer close(done)
		defer cancel()
		nc, err := d.DialContext(dctx, network, ap.String())
		_ = s.finishDial(nc, err)
	}()
	return ErrInProgress
}

func (s *Socket) finishDial(nc net.Conn, err error) error {
	f := s.f
	if err != nil {
		f.mu.Lock()
		f.dialErr = err
		f.mu.Unlock()
		s.shim.dialFailures.Add(1)
		return err
	}

	c, err := tcpconn.Wrap(nc)
	if err != nil {
		_ = nc.Close()
		return err
	}

	f.mu.Lock()
	if f.state != types.SocketConnecting {
		// 拨号期间描述符已全部关闭
		f.mu.Unlock()
		_ = c.Close()
		return ErrClosed
	}
	f.conn = c
	f.state = types.SocketEstablished
	f.dialErr = nil
	f.mu.Unlock()
	return nil
}

// WaitConnected 等待非阻塞建连完成
func (s *Socket) WaitConnected(ctx context.Context) error {
	f := s.f
	f.mu.Lock()
	done, state := f.dialDone, f.state
	f.mu.Unlock()

	if done == nil {
		if state == types.SocketEstablished {
			return nil
		}
		return ErrNotConnected
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == types.SocketEstablished {
		return nil
	}
	if f.dialErr != nil {
		return f.dialErr
	}
	return ErrNotConnected
}

// Close 关闭描述符
//
// 连接被池接收时只移除描述符引用；否则最后一个引用关闭底层连接。
func (s *Socket) Close() error {
	_, err := s.close()
	return err
}

func (s *Socket) close() (pooled bool, err error) {
	if !s.closed.CompareAndSwap(false, true) {
		return false, ErrClosed
	}
	s.shim.forget(s)
	s.shim.closes.Add(1)

	if s.shim.Installed() && s.shim.ctrl.OnClose(context.Background(), s) == types.ClosePooled {
		s.drop()
		s.shim.pooled.Add(1)
		return true, nil
	}
	return false, s.release()
}

// Shutdown 关闭连接的一个或两个方向
//
// 连接被池接收时等同于关闭描述符，底层连接保持完整。
func (s *Socket) Shutdown(how ShutdownHow) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if s.shim.Installed() && s.shim.ctrl.OnClose(context.Background(), s) == types.ClosePooled {
		if s.closed.CompareAndSwap(false, true) {
			s.shim.forget(s)
			s.drop()
		}
		s.shim.pooled.Add(1)
		return nil
	}

	tcp, err := s.tcp()
	if err != nil {
		return err
	}
	switch how {
	case ShutRead:
		return tcp.CloseRead()
	case ShutWrite:
		return tcp.CloseWrite()
	default:
		if err := tcp.CloseRead(); err != nil {
			return err
		}
		return tcp.CloseWrite()
	}
}

// drop 移除描述符引用，不触碰连接
func (s *Socket) drop() {
	s.f.mu.Lock()
	s.f.refs--
	s.f.mu.Unlock()
}

// release 原始关闭：最后一个引用关闭连接并取消进行中的拨号
func (s *Socket) release() error {
	f := s.f
	f.mu.Lock()
	f.refs--
	if f.refs > 0 {
		f.mu.Unlock()
		return nil
	}
	c, cancel := f.conn, f.cancelDial
	f.conn, f.cancelDial = nil, nil
	f.state = types.SocketClosed
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		return c.Close()
	}
	return nil
}

// Dup 复制描述符，新描述符与原描述符共享底层连接
func (s *Socket) Dup() (*Socket, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.f.mu.Lock()
	s.f.refs++
	s.f.mu.Unlock()

	dup := &Socket{shim: s.shim, f: s.f}
	s.shim.track(dup)
	return dup, nil
}

// ============================================================================
//                              控制器视图
// ============================================================================

// Protocol 拦截层只创建 TCP 套接字
func (s *Socket) Protocol() types.Protocol { return types.ProtocolTCP }

// Family 地址族
func (s *Socket) Family() types.Family {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.family
}

// State 套接字状态
func (s *Socket) State() types.SocketState {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.state
}

// Role 套接字角色
func (s *Socket) Role() types.Role {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.role
}

// Nonblocking 是否非阻塞
func (s *Socket) Nonblocking() bool {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.nonblocking
}

// Destination 已连接或正在连接的 IPv4 目标
func (s *Socket) Destination() (types.Destination, bool) {
	s.f.mu.Lock()
	target := s.f.target
	s.f.mu.Unlock()

	if !target.IsValid() {
		return types.Destination{}, false
	}
	dest, err := types.NewDestination(target)
	return dest, err == nil
}

// ResolveLocal 解析到 dest 的本地地址
//
// 未绑定时借助一次 UDP connect 取得路由选出的源地址，端口留给内核分配。
func (s *Socket) ResolveLocal(dest types.Destination) (netip.AddrPort, error) {
	s.f.mu.Lock()
	local := s.f.local
	s.f.mu.Unlock()
	if local.IsValid() {
		return local, nil
	}

	uc, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(dest.AddrPort()))
	if err != nil {
		return netip.AddrPort{}, err
	}
	la := uc.LocalAddr().(*net.UDPAddr).AddrPort()
	_ = uc.Close()

	local = netip.AddrPortFrom(la.Addr().Unmap(), 0)
	s.f.mu.Lock()
	s.f.local = local
	s.f.mu.Unlock()
	return local, nil
}

// RefCount 共享底层连接的描述符数
func (s *Socket) RefCount() int {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.refs
}

// Conn 当前持有的连接
func (s *Socket) Conn() interfaces.PooledConn {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return s.f.conn
}

// Graft 接管池中连接
//
// 上一个借用方设置的截止时间被清除。
func (s *Socket) Graft(c interfaces.PooledConn) {
	s.f.mu.Lock()
	old := s.f.conn
	s.f.conn = c
	s.f.state = types.SocketEstablished
	s.f.role = types.RoleClient
	s.f.mu.Unlock()

	if old != nil && old != c {
		_ = old.Close()
	}
	if h, ok := c.(tcpHolder); ok {
		_ = h.TCP().SetDeadline(time.Time{})
	}
}

// Detach 解除与连接的关联，不销毁连接
func (s *Socket) Detach() interfaces.PooledConn {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	c := s.f.conn
	s.f.conn = nil
	s.f.state = types.SocketClosed
	return c
}

// MarkClient 标记为客户端套接字
func (s *Socket) MarkClient() {
	s.f.mu.Lock()
	s.f.role = types.RoleClient
	s.f.mu.Unlock()
}

// ============================================================================
//                              net.Conn
// ============================================================================

func (s *Socket) tcp() (*net.TCPConn, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.f.mu.Lock()
	c := s.f.conn
	s.f.mu.Unlock()

	h, ok := c.(tcpHolder)
	if !ok {
		return nil, ErrNotConnected
	}
	return h.TCP(), nil
}

// Read 实现 net.Conn
func (s *Socket) Read(b []byte) (int, error) {
	tcp, err := s.tcp()
	if err != nil {
		return 0, err
	}
	return tcp.Read(b)
}

// Write 实现 net.Conn
func (s *Socket) Write(b []byte) (int, error) {
	tcp, err := s.tcp()
	if err != nil {
		return 0, err
	}
	return tcp.Write(b)
}

// LocalAddr 实现 net.Conn
func (s *Socket) LocalAddr() net.Addr {
	if tcp, err := s.tcp(); err == nil {
		return tcp.LocalAddr()
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return net.TCPAddrFromAddrPort(s.f.local)
}

// RemoteAddr 实现 net.Conn
func (s *Socket) RemoteAddr() net.Addr {
	if tcp, err := s.tcp(); err == nil {
		return tcp.RemoteAddr()
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return net.TCPAddrFromAddrPort(s.f.target)
}

// SetDeadline 实现 net.Conn
func (s *Socket) SetDeadline(t time.Time) error {
	tcp, err := s.tcp()
	if err != nil {
		return err
	}
	return tcp.SetDeadline(t)
}

// SetReadDeadline 实现 net.Conn
func (s *Socket) SetReadDeadline(t time.Time) error {
	tcp, err := s.tcp()
	if err != nil {
		return err
	}
	return tcp.SetReadDeadline(t)
}

// SetWriteDeadline 实现 net.Conn
func (s *Socket) SetWriteDeadline(t time.Time) error {
	tcp, err := s.tcp()
	if err != nil {
		return err
	}
	return tcp.SetWriteDeadline(t)
}
