package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/dep2p/go-connp/internal/core/controller"
	"github.com/dep2p/go-connp/internal/core/reaper"
	"github.com/dep2p/go-connp/internal/core/registry"
	"github.com/dep2p/go-connp/internal/core/shim"
	"github.com/dep2p/go-connp/internal/core/sockpool"
)

// Params 采集器依赖参数
type Params struct {
	fx.In

	Registry   *registry.Registry     `optional:"true"`
	Pool       *sockpool.Pool         `optional:"true"`
	Reaper     *reaper.Reaper         `optional:"true"`
	Controller *controller.Controller `optional:"true"`
	Shim       *shim.Shim             `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(
		NewCollectorFromParams,
		ProvideGatherer,
	),
)

// NewCollectorFromParams 从参数创建采集器
func NewCollectorFromParams(p Params) *Collector {
	return NewCollector(Sources{
		Registry:   p.Registry,
		Pool:       p.Pool,
		Reaper:     p.Reaper,
		Controller: p.Controller,
		Shim:       p.Shim,
	})
}

// ProvideGatherer 提供独立的 Prometheus 注册表，含 Go 运行时指标
func ProvideGatherer(c *Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return reg, nil
}
