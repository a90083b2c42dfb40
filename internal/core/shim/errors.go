package shim

import "errors"

var (
	// ErrClosed 描述符已关闭
	ErrClosed = errors.New("shim: use of closed socket")

	// ErrAlreadyConnected 套接字已连接或正在连接
	ErrAlreadyConnected = errors.New("shim: socket already connected")

	// ErrNotConnected 套接字未连接
	ErrNotConnected = errors.New("shim: socket not connected")

	// ErrInProgress 非阻塞建连进行中
	ErrInProgress = errors.New("shim: connect in progress")

	// ErrUnsupportedNetwork 不支持的网络类型
	ErrUnsupportedNetwork = errors.New("shim: unsupported network")

	// ErrNoAddress 地址解析无结果
	ErrNoAddress = errors.New("shim: no suitable address")

	// ErrNoController 未提供连接控制器
	ErrNoController = errors.New("shim: no controller")
)
