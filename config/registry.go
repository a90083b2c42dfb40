package config

// RegistryConfig 目标登记表配置
//
// 规则格式：
//   - "10.0.0.5"          单个 IP，任意端口
//   - "10.0.0.5:6379"     IP + 端口
//   - "10.0.0.0/8"        网段，任意端口
//   - "10.0.0.0/8:6379"   网段 + 端口
//   - "*:80"              任意 IP，指定端口
//
// Deny 优先于 Allow。
type RegistryConfig struct {
	// Allow 允许池化的目标
	Allow []string `json:"allow" yaml:"allow"`

	// Deny 禁止池化的目标
	Deny []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// DefaultRegistryConfig 返回默认登记表配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Allow: []string{"0.0.0.0/0"}, // 允许所有 IPv4 目标
		Deny:  []string{},
	}
}

// Validate 验证登记表配置
//
// 规则语法由 registry 包在构建 ACL 时校验。
func (c RegistryConfig) Validate() error {
	return nil
}

// WithAllow 设置允许规则
func (c RegistryConfig) WithAllow(rules ...string) RegistryConfig {
	c.Allow = rules
	return c
}

// WithDeny 设置禁止规则
func (c RegistryConfig) WithDeny(rules ...string) RegistryConfig {
	c.Deny = rules
	return c
}
