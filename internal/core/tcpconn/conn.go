// Package tcpconn 提供可池化的 TCP 连接句柄
//
// Conn 包装 *net.TCPConn，为其分配进程内唯一 ID，
// 并通过内核 TCP 状态判断连接是否仍处于 ESTABLISHED。
package tcpconn

import (
	"errors"
	"net"
	"sync/atomic"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/types"
)

// ErrNotTCP 不是 TCP 连接
var ErrNotTCP = errors.New("tcpconn: not a *net.TCPConn")

var nextID atomic.Uint64

var _ interfaces.PooledConn = (*Conn)(nil)

// Conn TCP 连接句柄
type Conn struct {
	id     uint64
	tcp    *net.TCPConn
	remote types.Destination
	closed atomic.Bool
}

// Wrap 包装已建立的 TCP 连接
func Wrap(c net.Conn) (*Conn, error) {
	tcp, ok := c.(*net.TCPConn)
	if !ok {
		return nil, ErrNotTCP
	}

	conn := &Conn{
		id:  nextID.Add(1),
		tcp: tcp,
	}
	if ra, ok := tcp.RemoteAddr().(*net.TCPAddr); ok {
		conn.remote, _ = types.DestinationFromTCPAddr(ra)
	}
	return conn, nil
}

// ID 返回连接 ID
func (c *Conn) ID() uint64 {
	return c.id
}

// TCP 返回底层连接
func (c *Conn) TCP() *net.TCPConn {
	return c.tcp
}

// Remote 返回远端目标
func (c *Conn) Remote() types.Destination {
	return c.remote
}

// Established 连接是否仍处于 ESTABLISHED 状态
func (c *Conn) Established() bool {
	if c.closed.Load() {
		return false
	}
	return established(c.tcp)
}

// Closed 是否已关闭
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Close 关闭底层连接，重复调用返回 nil
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.tcp.Close()
}
