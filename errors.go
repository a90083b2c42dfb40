package connp

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 子系统未启动
	ErrNotStarted = errors.New("connp: not started")

	// ErrAlreadyStarted 子系统已启动
	ErrAlreadyStarted = errors.New("connp: already started")

	// ErrClosed 子系统已停止，不可再次启动
	ErrClosed = errors.New("connp: closed")
)
