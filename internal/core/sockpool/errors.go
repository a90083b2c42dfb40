package sockpool

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("sockpool: invalid config")

	// ErrNoCloseQueue 未提供关闭队列
	ErrNoCloseQueue = errors.New("sockpool: no close queue")
)
