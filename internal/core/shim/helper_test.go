package shim

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/types"
)

// ============================================================================
//                              回显服务器
// ============================================================================

type echoServer struct {
	ln       net.Listener
	accepted atomic.Int32
	eofs     atomic.Int32
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	s := &echoServer{ln: ln}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepted.Add(1)
			go func() {
				defer c.Close()
				_, _ = io.Copy(c, c)
				s.eofs.Add(1)
			}()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *echoServer) addr() string {
	return s.ln.Addr().String()
}

// ============================================================================
//                              Mock 控制器
// ============================================================================

// mockController 以目标为键保存被接收的连接
type mockController struct {
	mu       sync.Mutex
	accept   bool
	conns    map[types.Destination][]interfaces.PooledConn
	connects int
	closes   int
	states   []types.SocketState
}

func newMockController(accept bool) *mockController {
	return &mockController{
		accept: accept,
		conns:  make(map[types.Destination][]interfaces.PooledConn),
	}
}

func (m *mockController) OnConnect(_ context.Context, sock interfaces.Socket, dest types.Destination) types.ConnectResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connects++
	sock.MarkClient()
	list := m.conns[dest]
	if len(list) == 0 {
		return types.ConnectMiss
	}
	c := list[len(list)-1]
	m.conns[dest] = list[:len(list)-1]
	sock.Graft(c)
	if sock.Nonblocking() {
		return types.ConnectHitNonBlocking
	}
	return types.ConnectHit
}

func (m *mockController) OnClose(_ context.Context, sock interfaces.Socket) types.CloseResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closes++
	m.states = append(m.states, sock.State())
	if !m.accept || sock.RefCount() != 1 || sock.State() != types.SocketEstablished {
		return types.CloseNotPooled
	}
	dest, ok := sock.Destination()
	if !ok {
		return types.CloseNotPooled
	}
	m.conns[dest] = append(m.conns[dest], sock.Detach())
	return types.ClosePooled
}

func (m *mockController) pooled(dest types.Destination) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns[dest])
}

func (m *mockController) lastState() types.SocketState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return types.SocketUnconnected
	}
	return m.states[len(m.states)-1]
}

func (m *mockController) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects, m.closes
}

func newTestShim(t *testing.T, ctrl interfaces.Controller) *Shim {
	t.Helper()
	s, err := New(DefaultConfig(), ctrl)
	require.NoError(t, err)
	s.Install()
	return s
}

// roundTrip 写入并读回回显
func roundTrip(t *testing.T, c net.Conn, msg string) {
	t.Helper()
	_, err := c.Write([]byte(msg))
	require.NoError(t, err)
	buf := make([]byte, len(msg))
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	require.Equal(t, msg, string(buf))
}
