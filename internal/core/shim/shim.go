package shim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/lib/log"
	"github.com/dep2p/go-connp/pkg/types"
)

var logger = log.Logger("core/shim")

// Stats 拦截层统计
type Stats struct {
	Open         int
	Connects     uint64
	Hits         uint64
	Dials        uint64
	DialFailures uint64
	Closes       uint64
	Pooled       uint64
}

// Shim 拦截层
type Shim struct {
	cfg       Config
	ctrl      interfaces.Controller
	resolver  *net.Resolver
	installed atomic.Bool

	mu   sync.Mutex
	open map[*Socket]struct{}

	connects     atomic.Uint64
	hits         atomic.Uint64
	dials        atomic.Uint64
	dialFailures atomic.Uint64
	closes       atomic.Uint64
	pooled       atomic.Uint64
}

// New 创建拦截层，创建后处于未安装状态
func New(cfg Config, ctrl interfaces.Controller) (*Shim, error) {
	if ctrl == nil {
		return nil, ErrNoController
	}
	return &Shim{
		cfg:      cfg,
		ctrl:     ctrl,
		resolver: net.DefaultResolver,
		open:     make(map[*Socket]struct{}),
	}, nil
}

// Install 安装拦截点
func (s *Shim) Install() {
	if s.installed.CompareAndSwap(false, true) {
		logger.Info("拦截点已安装")
	}
}

// Restore 恢复原始行为，之后所有调用直接放行
func (s *Shim) Restore() {
	if s.installed.CompareAndSwap(true, false) {
		logger.Info("拦截点已恢复")
	}
}

// Installed 拦截点是否已安装
func (s *Shim) Installed() bool {
	return s.installed.Load()
}

// NewSocket 创建未连接的套接字
func (s *Shim) NewSocket(opts ...SocketOption) *Socket {
	f := &file{
		refs:    1,
		network: "tcp",
		state:   types.SocketUnconnected,
	}
	for _, opt := range opts {
		opt(f)
	}
	sock := &Socket{shim: s, f: f}
	s.track(sock)
	return sock
}

func (s *Shim) track(sock *Socket) {
	s.mu.Lock()
	s.open[sock] = struct{}{}
	s.mu.Unlock()
}

func (s *Shim) forget(sock *Socket) {
	s.mu.Lock()
	delete(s.open, sock)
	s.mu.Unlock()
}

// ExitPrepare 把所有打开的客户端套接字交给池，其余按原始行为关闭
//
// 返回被池接收的套接字数。
func (s *Shim) ExitPrepare() (int, error) {
	s.mu.Lock()
	socks := make([]*Socket, 0, len(s.open))
	for sock := range s.open {
		socks = append(socks, sock)
	}
	s.mu.Unlock()

	var (
		pooled int
		err    error
	)
	for _, sock := range socks {
		ok, cerr := sock.close()
		if ok {
			pooled++
		}
		if cerr != nil && !errors.Is(cerr, ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}

	logger.Info("退出前回收套接字", "total", len(socks), "pooled", pooled)
	return pooled, err
}

// Stats 返回拦截层统计
func (s *Shim) Stats() Stats {
	s.mu.Lock()
	open := len(s.open)
	s.mu.Unlock()

	return Stats{
		Open:         open,
		Connects:     s.connects.Load(),
		Hits:         s.hits.Load(),
		Dials:        s.dials.Load(),
		DialFailures: s.dialFailures.Load(),
		Closes:       s.closes.Load(),
		Pooled:       s.pooled.Load(),
	}
}

func (s *Shim) dialerFor(local netip.AddrPort) *net.Dialer {
	d := &net.Dialer{
		Timeout:   s.cfg.DialTimeout,
		KeepAlive: s.cfg.KeepAlive,
	}
	if local.IsValid() {
		d.LocalAddr = net.TCPAddrFromAddrPort(local)
	}
	return d
}

// resolve 解析目标地址，字面量地址不经过解析器
func (s *Shim) resolve(ctx context.Context, network, address string) (netip.AddrPort, error) {
	var family string
	switch network {
	case "tcp":
		family = "ip"
	case "tcp4":
		family = "ip4"
	case "tcp6":
		family = "ip6"
	default:
		return netip.AddrPort{}, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}

	if ap, err := netip.ParseAddrPort(address); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return netip.AddrPort{}, err
	}
	port, err := s.resolver.LookupPort(ctx, network, portStr)
	if err != nil {
		return netip.AddrPort{}, err
	}
	addrs, err := s.resolver.LookupNetIP(ctx, family, host)
	if err != nil {
		return netip.AddrPort{}, err
	}

	// tcp 优先 IPv4
	var chosen netip.Addr
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is4() {
			chosen = a
			break
		}
		if !chosen.IsValid() {
			chosen = a
		}
	}
	if !chosen.IsValid() {
		return netip.AddrPort{}, fmt.Errorf("%w: %s", ErrNoAddress, address)
	}
	return netip.AddrPortFrom(chosen, uint16(port)), nil
}

// Dialer 返回经由拦截层拨号的 Dialer
func (s *Shim) Dialer() *Dialer {
	return &Dialer{shim: s}
}

// Dialer 经由拦截层拨号
//
// 可直接用作 http.Transport.DialContext 等需要拨号函数的地方。
type Dialer struct {
	shim *Shim
}

// DialContext 建立连接，返回的 net.Conn 是 *Socket
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	sock := d.shim.NewSocket(WithNetwork(network))
	if err := sock.Connect(ctx, address); err != nil {
		_ = sock.Close()
		return nil, err
	}
	return sock, nil
}

// Dial 使用后台 context 建立连接
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, address)
}
