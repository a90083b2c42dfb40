package controller

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/types"
)

// ============================================================================
//                              Mock 实现
// ============================================================================

var nextID atomic.Uint64

type mockConn struct {
	id     uint64
	closed atomic.Bool
	dead   atomic.Bool
}

func newMockConn() *mockConn { return &mockConn{id: nextID.Add(1)} }

func (c *mockConn) ID() uint64        { return c.id }
func (c *mockConn) Established() bool { return !c.closed.Load() && !c.dead.Load() }
func (c *mockConn) Close() error {
	c.closed.Store(true)
	return nil
}

type reaperCtxKey struct{}

// mockReaper 描述符表的最小实现
type mockReaper struct {
	mu      sync.Mutex
	running bool
	limit   int
	table   map[types.Descriptor]interfaces.PooledConn
	next    types.Descriptor
	closes  []types.Descriptor
	wakes   int
}

func newMockReaper() *mockReaper {
	return &mockReaper{
		running: true,
		limit:   64,
		table:   make(map[types.Descriptor]interfaces.PooledConn),
	}
}

func (r *mockReaper) EnqueueClose(d types.Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes = append(r.closes, d)
	delete(r.table, d)
	return true
}

func (r *mockReaper) Acquire() (types.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.table) >= r.limit {
		return types.NoDescriptor, false
	}
	d := r.next
	r.next++
	r.table[d] = nil
	return d, true
}

func (r *mockReaper) Install(d types.Descriptor, c interfaces.PooledConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[d] = c
}

func (r *mockReaper) Release(d types.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.table, d)
}

func (r *mockReaper) Wake() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wakes++
}

func (r *mockReaper) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *mockReaper) IsReaperContext(ctx context.Context) bool {
	return ctx.Value(reaperCtxKey{}) != nil
}

func (r *mockReaper) installed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}

func (r *mockReaper) wakeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wakes
}

// mockSocket 被拦截的调用方套接字
type mockSocket struct {
	protocol    types.Protocol
	family      types.Family
	state       types.SocketState
	role        types.Role
	nonblocking bool
	dest        types.Destination
	hasDest     bool
	refs        int
	conn        interfaces.PooledConn
	resolveErr  error

	grafted  int
	detached int
}

func newMockSocket() *mockSocket {
	return &mockSocket{refs: 1}
}

// newMockSocketTo 已记录目标地址的套接字
func newMockSocketTo(dest types.Destination) *mockSocket {
	s := newMockSocket()
	s.dest, s.hasDest = dest, true
	return s
}

// connectTo 模拟未命中后的正常建连
func (s *mockSocket) connectTo(dest types.Destination, established bool) *mockConn {
	s.dest, s.hasDest = dest, true
	if !established {
		s.state = types.SocketConnecting
		return nil
	}
	c := newMockConn()
	s.conn = c
	s.state = types.SocketEstablished
	return c
}

func (s *mockSocket) Protocol() types.Protocol { return s.protocol }
func (s *mockSocket) Family() types.Family     { return s.family }
func (s *mockSocket) State() types.SocketState { return s.state }
func (s *mockSocket) Role() types.Role         { return s.role }
func (s *mockSocket) Nonblocking() bool        { return s.nonblocking }
func (s *mockSocket) RefCount() int            { return s.refs }
func (s *mockSocket) Conn() interfaces.PooledConn {
	return s.conn
}
func (s *mockSocket) MarkClient() { s.role = types.RoleClient }

func (s *mockSocket) Destination() (types.Destination, bool) {
	return s.dest, s.hasDest
}

func (s *mockSocket) ResolveLocal(types.Destination) (netip.AddrPort, error) {
	if s.resolveErr != nil {
		return netip.AddrPort{}, s.resolveErr
	}
	return netip.MustParseAddrPort("127.0.0.1:40000"), nil
}

func (s *mockSocket) Graft(c interfaces.PooledConn) {
	s.conn = c
	s.state = types.SocketEstablished
	s.grafted++
}

func (s *mockSocket) Detach() interfaces.PooledConn {
	c := s.conn
	s.conn = nil
	s.state = types.SocketClosed
	s.detached++
	return c
}

var errResolve = errors.New("resolve failed")
