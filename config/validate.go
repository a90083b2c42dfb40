package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，额外检查 nil。
func ValidateAll(c *Config) error {
	if c == nil {
		return ErrNilConfig
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 锁类型大小写或为空 -> 规范化，空值使用 spin
//   - 描述符表小于池容量 -> 使用默认大小（池容量两倍）
//   - 唤醒突发量为 0 -> 1
//   - 宽限期不短于停止超时 -> 取停止超时的一半
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	c.Pool.LockType = strings.ToLower(strings.TrimSpace(c.Pool.LockType))
	if c.Pool.LockType == "" {
		c.Pool.LockType = LockSpin
	}

	if c.Reaper.MaxDescriptors > 0 && c.Reaper.MaxDescriptors < c.Pool.Capacity {
		c.Reaper.MaxDescriptors = 0
	}

	if c.Reaper.WakeBurst == 0 {
		c.Reaper.WakeBurst = 1
	}

	if c.Lifecycle.StopTimeout > 0 && c.Lifecycle.GracePeriod >= c.Lifecycle.StopTimeout {
		c.Lifecycle.GracePeriod = c.Lifecycle.StopTimeout / 2
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}

// ValidateCompatibility 验证配置之间的兼容性
//
//   - 描述符表必须能容纳整个池
//   - 空闲超时不应短于清扫间隔，否则回收粒度由清扫间隔决定
func ValidateCompatibility(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}

	if limit := c.Reaper.DescriptorLimit(c.Pool.Capacity); limit < c.Pool.Capacity {
		return fmt.Errorf("descriptor table (%d) smaller than pool capacity (%d)", limit, c.Pool.Capacity)
	}

	if c.Pool.IdleTimeout < c.Reaper.SweepInterval {
		return fmt.Errorf("idle timeout %s shorter than sweep interval %s",
			c.Pool.IdleTimeout, c.Reaper.SweepInterval)
	}

	return nil
}
