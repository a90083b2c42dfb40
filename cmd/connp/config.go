package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dep2p/go-connp/config"
)

// 环境变量（均使用 CONNP_ 前缀）
const (
	envPrefix      = "CONNP_"
	envCapacity    = "POOL_CAPACITY"
	envIdleTimeout = "POOL_IDLE_TIMEOUT"
	envLockType    = "POOL_LOCK_TYPE"
	envAllow       = "ALLOW"
	envDeny        = "DENY"
	envGracePeriod = "GRACE_PERIOD"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件：
//   - CONNP_POOL_CAPACITY: 池容量
//   - CONNP_POOL_IDLE_TIMEOUT: 空闲超时（如 30s）
//   - CONNP_POOL_LOCK_TYPE: mutex / spin
//   - CONNP_ALLOW / CONNP_DENY: 目标规则（逗号分隔）
//   - CONNP_GRACE_PERIOD: 停止宽限期
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + envCapacity); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool = cfg.Pool.WithCapacity(n)
		}
	}
	if v := os.Getenv(envPrefix + envIdleTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pool = cfg.Pool.WithIdleTimeout(d)
		}
	}
	if v := os.Getenv(envPrefix + envLockType); v != "" {
		cfg.Pool = cfg.Pool.WithLockType(strings.ToLower(v))
	}
	if v := os.Getenv(envPrefix + envAllow); v != "" {
		cfg.Registry = cfg.Registry.WithAllow(splitAndTrim(v, ",")...)
	}
	if v := os.Getenv(envPrefix + envDeny); v != "" {
		cfg.Registry = cfg.Registry.WithDeny(splitAndTrim(v, ",")...)
	}
	if v := os.Getenv(envPrefix + envGracePeriod); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lifecycle = cfg.Lifecycle.WithGracePeriod(d)
		}
	}
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
