//go:build unix && !linux

package tcpconn

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// established 以非阻塞 MSG_PEEK 窥探连接
//
// EAGAIN 表示连接仍在且无待读数据；读到 0 字节表示对端已发送 FIN。
// 待读数据不被消耗，与 Linux 上 TCP_INFO 的判断一致，仍视为已建立。
func established(tcp *net.TCPConn) bool {
	raw, err := tcp.SyscallConn()
	if err != nil {
		return false
	}

	alive := false
	if err := raw.Control(func(fd uintptr) {
		var buf [1]byte
		n, _, rerr := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case errors.Is(rerr, unix.EAGAIN), errors.Is(rerr, unix.EWOULDBLOCK):
			alive = true
		case rerr == nil:
			alive = n > 0
		}
	}); err != nil {
		return false
	}
	return alive
}
