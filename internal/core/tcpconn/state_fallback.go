//go:build !unix

package tcpconn

import (
	"errors"
	"net"
	"os"
	"time"
)

// established windows / plan9 上的近似探测
//
// 以极短的读超时窥探连接：超时说明连接仍在且无待读数据；
// 读到 EOF 或错误说明对端已关闭。读到的数据会被消耗，此时视为不可复用。
func established(tcp *net.TCPConn) bool {
	if err := tcp.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false
	}
	defer tcp.SetReadDeadline(time.Time{})

	var buf [1]byte
	_, err := tcp.Read(buf[:])
	return errors.Is(err, os.ErrDeadlineExceeded)
}
