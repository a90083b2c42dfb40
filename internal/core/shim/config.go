package shim

import (
	"time"

	"github.com/dep2p/go-connp/config"
)

// Config 拦截层配置
type Config struct {
	// DialTimeout 正常建连超时
	DialTimeout time.Duration

	// KeepAlive TCP keepalive 周期
	KeepAlive time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建拦截层配置
func ConfigFromUnified(cfg *config.Config) Config {
	sc := config.DefaultShimConfig()
	if cfg != nil {
		sc = cfg.Shim
	}
	return Config{
		DialTimeout: sc.DialTimeout.Duration(),
		KeepAlive:   sc.KeepAlive.Duration(),
	}
}
