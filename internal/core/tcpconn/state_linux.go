//go:build linux

package tcpconn

import (
	"net"

	"golang.org/x/sys/unix"
)

// established 通过 TCP_INFO 读取内核连接状态
//
// 对端已发送 FIN（CLOSE_WAIT）或连接已复位的套接字不再视为已建立。
func established(tcp *net.TCPConn) bool {
	raw, err := tcp.SyscallConn()
	if err != nil {
		return false
	}

	var (
		info   *unix.TCPInfo
		optErr error
	)
	if err := raw.Control(func(fd uintptr) {
		info, optErr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	}); err != nil || optErr != nil {
		return false
	}
	return info.State == unix.BPF_TCP_ESTABLISHED
}
