package reaper

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-connp/config"
)

// Config 回收器配置
type Config struct {
	// SweepInterval 周期清扫间隔
	SweepInterval time.Duration

	// MaxDescriptors 描述符表大小
	MaxDescriptors int

	// WakeRate 每秒允许的唤醒清扫次数，0 表示不限制
	WakeRate rate.Limit

	// WakeBurst 唤醒清扫突发量
	WakeBurst int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建回收器配置
func ConfigFromUnified(cfg *config.Config) Config {
	rc := config.DefaultReaperConfig()
	capacity := config.DefaultPoolConfig().Capacity
	if cfg != nil {
		rc = cfg.Reaper
		capacity = cfg.Pool.Capacity
	}

	wakeRate := rate.Limit(rc.WakeRate)
	if rc.WakeRate == 0 {
		wakeRate = rate.Inf
	}
	return Config{
		SweepInterval:  rc.SweepInterval.Duration(),
		MaxDescriptors: rc.DescriptorLimit(capacity),
		WakeRate:       wakeRate,
		WakeBurst:      max(rc.WakeBurst, 1),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.SweepInterval <= 0 || c.MaxDescriptors <= 0 || c.WakeBurst <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
