// Package config 提供 connp 的统一配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON / YAML 加载。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Pool.Capacity = 64
//	cfg.Registry.Allow = []string{"10.0.0.0/8:6379"}
//
//	// 从文件加载
//	cfg, err := config.LoadFile("connp.yaml")
package config

import "fmt"

// Config 是 connp 的完整配置结构
//
//   - Pool: 套接字池容量、空闲超时、锁类型、LRU 淘汰
//   - Reaper: 回收器清扫间隔、描述符表大小
//   - Registry: 目标 ACL
//   - Shim: 拦截层建连参数
//   - Lifecycle: 启停参数
type Config struct {
	// Pool 套接字池配置
	Pool PoolConfig `json:"pool" yaml:"pool"`

	// Reaper 回收器配置
	Reaper ReaperConfig `json:"reaper" yaml:"reaper"`

	// Registry 目标登记表配置
	Registry RegistryConfig `json:"registry" yaml:"registry"`

	// Shim 拦截层配置
	Shim ShimConfig `json:"shim" yaml:"shim"`

	// Lifecycle 生命周期配置
	Lifecycle LifecycleConfig `json:"lifecycle" yaml:"lifecycle"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Pool:      DefaultPoolConfig(),
		Reaper:    DefaultReaperConfig(),
		Registry:  DefaultRegistryConfig(),
		Shim:      DefaultShimConfig(),
		Lifecycle: DefaultLifecycleConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := c.Reaper.Validate(); err != nil {
		return fmt.Errorf("reaper: %w", err)
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if err := c.Shim.Validate(); err != nil {
		return fmt.Errorf("shim: %w", err)
	}
	if err := c.Lifecycle.Validate(); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}
	return nil
}
