package config

import (
	"errors"
	"time"
)

// ReaperConfig 回收器配置
type ReaperConfig struct {
	// SweepInterval 周期清扫间隔
	SweepInterval Duration `json:"sweep_interval" yaml:"sweep_interval"`

	// MaxDescriptors 描述符表大小
	//
	// 0 表示使用池容量的两倍：淘汰出的描述符在异步关闭前仍占用表项。
	MaxDescriptors int `json:"max_descriptors,omitempty" yaml:"max_descriptors,omitempty"`

	// WakeRate 每秒允许的唤醒清扫次数
	WakeRate float64 `json:"wake_rate" yaml:"wake_rate"`

	// WakeBurst 唤醒清扫突发量
	WakeBurst int `json:"wake_burst" yaml:"wake_burst"`
}

// DefaultReaperConfig 返回默认回收器配置
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		SweepInterval: Duration(1 * time.Second),
		WakeRate:      10,
		WakeBurst:     1,
	}
}

// Validate 验证回收器配置
func (c ReaperConfig) Validate() error {
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.MaxDescriptors < 0 {
		return errors.New("max descriptors must be non-negative")
	}
	if c.WakeRate < 0 {
		return errors.New("wake rate must be non-negative")
	}
	if c.WakeBurst < 0 {
		return errors.New("wake burst must be non-negative")
	}
	return nil
}

// WithSweepInterval 设置清扫间隔
func (c ReaperConfig) WithSweepInterval(d time.Duration) ReaperConfig {
	c.SweepInterval = Duration(d)
	return c
}

// DescriptorLimit 返回描述符表的实际大小
func (c ReaperConfig) DescriptorLimit(poolCapacity int) int {
	if c.MaxDescriptors > 0 {
		return c.MaxDescriptors
	}
	return 2 * poolCapacity
}
