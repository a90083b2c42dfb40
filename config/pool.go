package config

import (
	"errors"
	"time"
)

// 锁类型
const (
	// LockMutex 互斥锁
	LockMutex = "mutex"
	// LockSpin 自旋锁
	LockSpin = "spin"
)

// PoolConfig 套接字池配置
//
// 容量在进程生命周期内固定，不支持运行时调整。
type PoolConfig struct {
	// Capacity 槽位数量
	Capacity int `json:"capacity" yaml:"capacity"`

	// IdleTimeout 空闲超时，超过后由清扫回收
	IdleTimeout Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// LockType 池锁类型：mutex 或 spin
	LockType string `json:"lock_type" yaml:"lock_type"`

	// EnableLRU 池满时是否按使用次数淘汰
	EnableLRU bool `json:"enable_lru" yaml:"enable_lru"`
}

// DefaultPoolConfig 返回默认套接字池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Capacity:    200,                        // 200 个槽位
		IdleTimeout: Duration(30 * time.Second), // 空闲 30 秒回收
		LockType:    LockSpin,                   // 临界区短，默认自旋
		EnableLRU:   true,
	}
}

// Validate 验证套接字池配置
func (c PoolConfig) Validate() error {
	if c.Capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.LockType != LockMutex && c.LockType != LockSpin {
		return errors.New("lock type must be mutex or spin")
	}
	return nil
}

// WithCapacity 设置容量
func (c PoolConfig) WithCapacity(n int) PoolConfig {
	c.Capacity = n
	return c
}

// WithIdleTimeout 设置空闲超时
func (c PoolConfig) WithIdleTimeout(d time.Duration) PoolConfig {
	c.IdleTimeout = Duration(d)
	return c
}

// WithLockType 设置锁类型
func (c PoolConfig) WithLockType(lockType string) PoolConfig {
	c.LockType = lockType
	return c
}

// WithLRU 设置是否启用 LRU 淘汰
func (c PoolConfig) WithLRU(enabled bool) PoolConfig {
	c.EnableLRU = enabled
	return c
}
