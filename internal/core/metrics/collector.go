package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-connp/internal/core/controller"
	"github.com/dep2p/go-connp/internal/core/reaper"
	"github.com/dep2p/go-connp/internal/core/registry"
	"github.com/dep2p/go-connp/internal/core/shim"
	"github.com/dep2p/go-connp/internal/core/sockpool"
)

const namespace = "connp"

// Sources 指标来源，任一为 nil 时跳过对应指标
type Sources struct {
	Registry   *registry.Registry
	Pool       *sockpool.Pool
	Reaper     *reaper.Reaper
	Controller *controller.Controller
	Shim       *shim.Shim
}

// Collector Prometheus 采集器
type Collector struct {
	src Sources

	destAll         *prometheus.Desc
	destIdle        *prometheus.Desc
	destHit         *prometheus.Desc
	destMiss        *prometheus.Desc
	destEligibility *prometheus.Desc

	poolCapacity  *prometheus.Desc
	poolAllocated *prometheus.Desc
	poolBorrowed  *prometheus.Desc
	poolInserts   *prometheus.Desc
	poolRejects   *prometheus.Desc
	poolEvictions *prometheus.Desc
	poolSweeps    *prometheus.Desc
	poolReclaimed *prometheus.Desc

	reaperInUse  *prometheus.Desc
	reaperClosed *prometheus.Desc
	reaperWakes  *prometheus.Desc

	ctrlHits      *prometheus.Desc
	ctrlMisses    *prometheus.Desc
	ctrlPooled    *prometheus.Desc
	ctrlFallbacks *prometheus.Desc
	ctrlDemotions *prometheus.Desc

	shimOpen  *prometheus.Desc
	shimDials *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建采集器
func NewCollector(src Sources) *Collector {
	dest := []string{"destination"}
	desc := func(subsystem, name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}

	return &Collector{
		src: src,

		destAll:         desc("destination", "all_total", "Connections observed per destination.", dest),
		destIdle:        desc("destination", "idle_total", "Pooled connections reclaimed as idle per destination.", dest),
		destHit:         desc("destination", "hit_total", "Connects served from the pool per destination.", dest),
		destMiss:        desc("destination", "miss_total", "Connects to positive destinations that found no pooled connection.", dest),
		destEligibility: desc("destination", "eligibility", "Pooling eligibility: 0 unknown, 1 positive, 2 passive.", dest),

		poolCapacity:  desc("pool", "capacity", "Fixed number of pool slots.", nil),
		poolAllocated: desc("pool", "allocated", "Slots currently holding a connection.", nil),
		poolBorrowed:  desc("pool", "borrowed", "Slots currently lent to a caller.", nil),
		poolInserts:   desc("pool", "inserts_total", "Connections accepted into the pool.", nil),
		poolRejects:   desc("pool", "rejects_total", "Inserts rejected for lack of a slot.", nil),
		poolEvictions: desc("pool", "evictions_total", "Slots reclaimed by LRU eviction.", nil),
		poolSweeps:    desc("pool", "sweeps_total", "Completed pool sweeps.", nil),
		poolReclaimed: desc("pool", "reclaimed_total", "Slots reclaimed by sweeps.", nil),

		reaperInUse:  desc("reaper", "descriptors_in_use", "Reaper descriptors currently assigned.", nil),
		reaperClosed: desc("reaper", "closed_total", "Connections closed asynchronously by the reaper.", nil),
		reaperWakes:  desc("reaper", "wakes_total", "Wake-up sweeps, by outcome.", []string{"outcome"}),

		ctrlHits:      desc("controller", "hits_total", "Connect interceptions served from the pool.", nil),
		ctrlMisses:    desc("controller", "misses_total", "Connect interceptions that found no pooled connection.", nil),
		ctrlPooled:    desc("controller", "pooled_total", "Close interceptions that handed the connection to the pool.", nil),
		ctrlFallbacks: desc("controller", "fallbacks_total", "Close interceptions that fell back to a normal close.", nil),
		ctrlDemotions: desc("controller", "demotions_total", "Destinations demoted to passive.", nil),

		shimOpen:  desc("shim", "open_sockets", "Sockets currently open through the shim.", nil),
		shimDials: desc("shim", "dials_total", "Normal dials performed after a miss.", nil),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.destAll, c.destIdle, c.destHit, c.destMiss, c.destEligibility,
		c.poolCapacity, c.poolAllocated, c.poolBorrowed, c.poolInserts,
		c.poolRejects, c.poolEvictions, c.poolSweeps, c.poolReclaimed,
		c.reaperInUse, c.reaperClosed, c.reaperWakes,
		c.ctrlHits, c.ctrlMisses, c.ctrlPooled, c.ctrlFallbacks, c.ctrlDemotions,
		c.shimOpen, c.shimDials,
	} {
		ch <- d
	}
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}

	if r := c.src.Registry; r != nil {
		for _, e := range r.Snapshot() {
			dest := e.Destination.String()
			counter(c.destAll, e.All, dest)
			counter(c.destIdle, e.Idle, dest)
			counter(c.destHit, e.Hit, dest)
			counter(c.destMiss, e.Miss, dest)
			gauge(c.destEligibility, int(e.Eligibility), dest)
		}
	}

	if p := c.src.Pool; p != nil {
		s := p.Stats()
		gauge(c.poolCapacity, s.Capacity)
		gauge(c.poolAllocated, s.Allocated)
		gauge(c.poolBorrowed, s.Borrowed)
		counter(c.poolInserts, s.Inserts)
		counter(c.poolRejects, s.Rejects)
		counter(c.poolEvictions, s.Evictions)
		counter(c.poolSweeps, s.Sweeps)
		counter(c.poolReclaimed, s.Reclaimed)
	}

	if rp := c.src.Reaper; rp != nil {
		s := rp.Stats()
		gauge(c.reaperInUse, s.InUse)
		counter(c.reaperClosed, s.Closed)
		counter(c.reaperWakes, s.Wakes, "sent")
		counter(c.reaperWakes, s.WakeDropped, "throttled")
	}

	if ctrl := c.src.Controller; ctrl != nil {
		s := ctrl.Stats()
		counter(c.ctrlHits, s.Hits)
		counter(c.ctrlMisses, s.Misses)
		counter(c.ctrlPooled, s.Pooled+s.Returned)
		counter(c.ctrlFallbacks, s.Fallbacks)
		counter(c.ctrlDemotions, s.Demotions)
	}

	if sh := c.src.Shim; sh != nil {
		s := sh.Stats()
		gauge(c.shimOpen, s.Open)
		counter(c.shimDials, s.Dials)
	}
}
