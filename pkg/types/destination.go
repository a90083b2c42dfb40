package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ErrNotIPv4 地址不是 IPv4
var ErrNotIPv4 = errors.New("types: destination is not an IPv4 address")

// ============================================================================
//                              Destination - 目标地址
// ============================================================================

// Destination 池化连接的目标地址（IPv4 地址 + 端口）
//
// 零值表示无效目标。
type Destination struct {
	addr netip.AddrPort
}

// NewDestination 从 netip.AddrPort 创建目标地址
//
// IPv4-mapped IPv6 地址会被还原为 IPv4，其余 IPv6 地址返回 ErrNotIPv4。
func NewDestination(ap netip.AddrPort) (Destination, error) {
	ip := ap.Addr().Unmap()
	if !ip.Is4() {
		return Destination{}, ErrNotIPv4
	}
	return Destination{addr: netip.AddrPortFrom(ip, ap.Port())}, nil
}

// ParseDestination 解析 "ip:port" 格式的目标地址
func ParseDestination(s string) (Destination, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Destination{}, fmt.Errorf("types: parse destination %q: %w", s, err)
	}
	return NewDestination(ap)
}

// DestinationFromTCPAddr 从 *net.TCPAddr 创建目标地址
func DestinationFromTCPAddr(a *net.TCPAddr) (Destination, error) {
	if a == nil {
		return Destination{}, ErrNotIPv4
	}
	return NewDestination(a.AddrPort())
}

// MustDestination 解析目标地址，失败时 panic（仅用于测试和常量）
func MustDestination(s string) Destination {
	d, err := ParseDestination(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsValid 是否为有效目标
func (d Destination) IsValid() bool {
	return d.addr.IsValid()
}

// Addr 返回 IP 地址
func (d Destination) Addr() netip.Addr {
	return d.addr.Addr()
}

// Port 返回端口
func (d Destination) Port() uint16 {
	return d.addr.Port()
}

// AddrPort 返回 netip.AddrPort 形式
func (d Destination) AddrPort() netip.AddrPort {
	return d.addr
}

// TCPAddr 返回 *net.TCPAddr 形式，用于拨号
func (d Destination) TCPAddr() *net.TCPAddr {
	return net.TCPAddrFromAddrPort(d.addr)
}

// Key 返回 6 字节的紧凑表示（4 字节 IP + 2 字节端口，网络字节序）
//
// 用于哈希桶计算。
func (d Destination) Key() [6]byte {
	var k [6]byte
	ip := d.addr.Addr().As4()
	copy(k[:4], ip[:])
	binary.BigEndian.PutUint16(k[4:], d.addr.Port())
	return k
}

// String 返回 "ip:port" 字符串
func (d Destination) String() string {
	if !d.addr.IsValid() {
		return "invalid"
	}
	return d.addr.String()
}
