// Package log 提供 connp 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件输出结构化日志。
//
// 环境变量:
//   - CONNP_LOG_LEVEL: debug / info / warn / error（默认 info）
//   - CONNP_LOG_FORMAT: text / json（默认 text）
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	levelVar = new(slog.LevelVar)
	outputMu sync.Mutex
)

// SetDefault 设置默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// SetOutput 设置日志输出目标，保留当前级别和格式
//
// 示例：
//
//	file, _ := os.OpenFile("connp.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutput(file)
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	slog.SetDefault(slog.New(newHandler(w, formatFromEnv())))
}

// SetLevel 动态设置日志级别
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// Discard 丢弃所有日志（用于测试和基准）
func Discard() {
	SetOutput(io.Discard)
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都从 slog.Default() 获取最新的 handler，
// 支持在运行时动态切换日志输出目标。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
//
//	var logger = log.Logger("core/sockpool")
//	logger.Debug("借出连接", "dest", dest)
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) base() *slog.Logger {
	return slog.Default().With("component", l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.base().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.base().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.base().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.base().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.base().DebugContext(ctx, msg, args...)
}

// Enabled 判断级别是否启用，热路径上用于跳过参数构造
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return slog.Default().Enabled(context.Background(), level)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.base().With(args...)
}

// ============================================================================
//                              初始化
// ============================================================================

type format int

const (
	formatText format = iota
	formatJSON
)

func formatFromEnv() format {
	if strings.EqualFold(os.Getenv("CONNP_LOG_FORMAT"), "json") {
		return formatJSON
	}
	return formatText
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func newHandler(w io.Writer, f format) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}
	if f == formatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func init() {
	levelVar.Set(slog.LevelInfo)
	if lvl, ok := parseLevel(os.Getenv("CONNP_LOG_LEVEL")); ok {
		levelVar.Set(lvl)
	}
	slog.SetDefault(slog.New(newHandler(os.Stderr, formatFromEnv())))
}
