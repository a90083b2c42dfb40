package registry

import (
	"github.com/dep2p/go-connp/config"
)

// Config 登记表配置
type Config struct {
	// Allow 允许规则
	Allow []string

	// Deny 禁止规则
	Deny []string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建登记表配置
func ConfigFromUnified(cfg *config.Config) Config {
	rc := config.DefaultRegistryConfig()
	if cfg != nil {
		rc = cfg.Registry
	}
	return Config{
		Allow: append([]string(nil), rc.Allow...),
		Deny:  append([]string(nil), rc.Deny...),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	_, err := newACL(c.Allow, c.Deny)
	return err
}
