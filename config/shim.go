package config

import (
	"errors"
	"time"
)

// ShimConfig 拦截层配置
type ShimConfig struct {
	// DialTimeout 未命中时正常建连的超时
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// KeepAlive TCP keepalive 周期，负数表示关闭
	KeepAlive Duration `json:"keep_alive" yaml:"keep_alive"`
}

// DefaultShimConfig 返回默认拦截层配置
func DefaultShimConfig() ShimConfig {
	return ShimConfig{
		DialTimeout: Duration(5 * time.Second),
		KeepAlive:   Duration(15 * time.Second),
	}
}

// Validate 验证拦截层配置
func (c ShimConfig) Validate() error {
	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}
	return nil
}

// WithDialTimeout 设置建连超时
func (c ShimConfig) WithDialTimeout(d time.Duration) ShimConfig {
	c.DialTimeout = Duration(d)
	return c
}
