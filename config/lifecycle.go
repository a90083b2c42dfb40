package config

import (
	"errors"
	"time"
)

// LifecycleConfig 生命周期配置
type LifecycleConfig struct {
	// StartTimeout 初始化超时
	StartTimeout Duration `json:"start_timeout" yaml:"start_timeout"`

	// StopTimeout 关闭超时
	StopTimeout Duration `json:"stop_timeout" yaml:"stop_timeout"`

	// GracePeriod 拆除后的等待期，让与拆除竞争的在途调用退出
	GracePeriod Duration `json:"grace_period" yaml:"grace_period"`
}

// DefaultLifecycleConfig 返回默认生命周期配置
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		StartTimeout: Duration(15 * time.Second),
		StopTimeout:  Duration(15 * time.Second),
		GracePeriod:  Duration(1 * time.Second),
	}
}

// Validate 验证生命周期配置
func (c LifecycleConfig) Validate() error {
	if c.StartTimeout <= 0 {
		return errors.New("start timeout must be positive")
	}
	if c.StopTimeout <= 0 {
		return errors.New("stop timeout must be positive")
	}
	if c.GracePeriod < 0 {
		return errors.New("grace period must be non-negative")
	}
	if c.GracePeriod >= c.StopTimeout {
		return errors.New("grace period must be shorter than stop timeout")
	}
	return nil
}

// WithGracePeriod 设置等待期
func (c LifecycleConfig) WithGracePeriod(d time.Duration) LifecycleConfig {
	c.GracePeriod = Duration(d)
	return c
}
