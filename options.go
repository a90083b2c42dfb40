package connp

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-connp/config"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// clock 时间源，测试时注入 clock.NewMock()
	clock clock.Clock

	// userFxOptions 用户追加的 Fx 选项
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{
		config: config.NewConfig(),
		clock:  clock.New(),
	}
}

// WithConfig 使用完整配置替换默认配置
//
// 配置会被深拷贝，调用方后续修改不影响子系统。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return config.ErrNilConfig
		}
		o.config = config.CloneConfig(cfg)
		return nil
	}
}

// WithConfigFile 从 JSON / YAML 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPoolCapacity 设置池容量
func WithPoolCapacity(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("pool capacity must be positive: %d", n)
		}
		o.config.Pool = o.config.Pool.WithCapacity(n)
		return nil
	}
}

// WithIdleTimeout 设置池中连接的空闲超时
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("idle timeout must be positive: %s", d)
		}
		o.config.Pool = o.config.Pool.WithIdleTimeout(d)
		return nil
	}
}

// WithLockType 设置池锁类型（config.LockMutex / config.LockSpin）
func WithLockType(lockType string) Option {
	return func(o *options) error {
		o.config.Pool = o.config.Pool.WithLockType(lockType)
		return nil
	}
}

// WithLRU 设置池满时是否淘汰
func WithLRU(enabled bool) Option {
	return func(o *options) error {
		o.config.Pool = o.config.Pool.WithLRU(enabled)
		return nil
	}
}

// WithAllow 设置允许池化的目标规则
//
// 示例：WithAllow("10.0.0.0/8:6379", "192.168.1.10")
func WithAllow(rules ...string) Option {
	return func(o *options) error {
		o.config.Registry = o.config.Registry.WithAllow(rules...)
		return nil
	}
}

// WithDeny 设置禁止池化的目标规则，优先于 Allow
func WithDeny(rules ...string) Option {
	return func(o *options) error {
		o.config.Registry = o.config.Registry.WithDeny(rules...)
		return nil
	}
}

// WithSweepInterval 设置回收器清扫间隔
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) error {
		o.config.Reaper = o.config.Reaper.WithSweepInterval(d)
		return nil
	}
}

// WithGracePeriod 设置拆除后的宽限期
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) error {
		o.config.Lifecycle = o.config.Lifecycle.WithGracePeriod(d)
		return nil
	}
}

// WithDialTimeout 设置未命中时的建连超时
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.config.Shim = o.config.Shim.WithDialTimeout(d)
		return nil
	}
}

// WithClock 注入时间源
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return fmt.Errorf("clock is nil")
		}
		o.clock = clk
		return nil
	}
}

// WithFxOptions 追加用户 Fx 选项
//
// 用于替换或扩展内部组件，例如 fx.Decorate 包装控制器。
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
