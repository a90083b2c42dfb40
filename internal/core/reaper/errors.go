package reaper

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("reaper: invalid config")

	// ErrNoSweeper 未设置清扫对象
	ErrNoSweeper = errors.New("reaper: no sweeper")

	// ErrAlreadyRunning 回收器已在运行
	ErrAlreadyRunning = errors.New("reaper: already running")
)
