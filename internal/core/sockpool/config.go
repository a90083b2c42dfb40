package sockpool

import (
	"time"

	"github.com/dep2p/go-connp/config"
)

// Config 套接字池配置
type Config struct {
	// Capacity 槽位数量
	Capacity int

	// IdleTimeout 空闲超时
	IdleTimeout time.Duration

	// Spin 是否使用自旋锁
	Spin bool

	// EnableLRU 池满时是否淘汰
	EnableLRU bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建套接字池配置
func ConfigFromUnified(cfg *config.Config) Config {
	pc := config.DefaultPoolConfig()
	if cfg != nil {
		pc = cfg.Pool
	}
	return Config{
		Capacity:    pc.Capacity,
		IdleTimeout: pc.IdleTimeout.Duration(),
		Spin:        pc.LockType == config.LockSpin,
		EnableLRU:   pc.EnableLRU,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Capacity <= 0 || c.Capacity > maxCapacity {
		return ErrInvalidConfig
	}
	if c.IdleTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// bucketCount 哈希桶数量
func (c Config) bucketCount() int {
	return c.Capacity/2 + 1
}
