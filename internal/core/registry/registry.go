package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/lib/log"
	"github.com/dep2p/go-connp/pkg/types"
)

var logger = log.Logger("core/registry")

var _ interfaces.Registry = (*Registry)(nil)

// entry 目标条目
//
// 字段均为原子值，条目创建后只读路径不需要持有登记表锁。
type entry struct {
	eligibility atomic.Int32
	closeNow    atomic.Bool

	all  atomic.Uint64
	idle atomic.Uint64
	hit  atomic.Uint64
	miss atomic.Uint64

	firstSeen time.Time
}

// Entry 目标条目快照
type Entry struct {
	Destination types.Destination
	Eligibility types.Eligibility
	CloseNow    bool
	FirstSeen   time.Time

	All  uint64
	Idle uint64
	Hit  uint64
	Miss uint64
}

// Registry 目标登记表
type Registry struct {
	mu      sync.RWMutex
	acl     acl
	entries map[types.Destination]*entry
	clock   clock.Clock
}

// New 创建目标登记表
func New(cfg Config, clk clock.Clock) (*Registry, error) {
	a, err := newACL(cfg.Allow, cfg.Deny)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		acl:     a,
		entries: make(map[types.Destination]*entry),
		clock:   clk,
	}, nil
}

// Allowed 目标是否在 ACL 允许范围内
func (r *Registry) Allowed(dest types.Destination) bool {
	if !dest.IsValid() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.acl.permits(dest)
}

func (r *Registry) lookup(dest types.Destination) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[dest]
}

// observe 返回条目，首次观察时创建；ACL 不允许时返回 nil
func (r *Registry) observe(dest types.Destination) *entry {
	if e := r.lookup(dest); e != nil {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[dest]; ok {
		return e
	}
	if !dest.IsValid() || !r.acl.permits(dest) {
		return nil
	}
	e := &entry{firstSeen: r.clock.Now()}
	r.entries[dest] = e
	return e
}

// Eligibility 返回目标资格，未观察过的目标为 unknown
func (r *Registry) Eligibility(dest types.Destination) types.Eligibility {
	if e := r.lookup(dest); e != nil {
		return types.Eligibility(e.eligibility.Load())
	}
	return types.EligibilityUnknown
}

// SetEligibility 设置目标资格
func (r *Registry) SetEligibility(dest types.Destination, el types.Eligibility) {
	e := r.observe(dest)
	if e == nil {
		return
	}
	old := types.Eligibility(e.eligibility.Swap(int32(el)))
	if old != el {
		logger.Debug("目标资格变更", "dest", dest, "from", old, "to", el)
	}
}

// Promote 将 unknown 目标晋升为 positive
//
// 只在当前资格仍为 unknown 时生效，并发降级得到的 passive 不会被覆盖。
// 目标已为 positive 或晋升成功时返回 true。
func (r *Registry) Promote(dest types.Destination) bool {
	e := r.observe(dest)
	if e == nil {
		return false
	}
	if e.eligibility.CompareAndSwap(int32(types.EligibilityUnknown), int32(types.EligibilityPositive)) {
		logger.Debug("目标资格变更", "dest", dest, "from", types.EligibilityUnknown, "to", types.EligibilityPositive)
		return true
	}
	return types.Eligibility(e.eligibility.Load()) == types.EligibilityPositive
}

// TakeCloseNow 读取并清除 close_now 标志
func (r *Registry) TakeCloseNow(dest types.Destination) bool {
	e := r.lookup(dest)
	if e == nil {
		return false
	}
	return e.closeNow.CompareAndSwap(true, false)
}

// SetCloseNow 要求目标的下一次关闭走正常路径
func (r *Registry) SetCloseNow(dest types.Destination) {
	if e := r.observe(dest); e != nil {
		e.closeNow.Store(true)
	}
}

// Increment 递增目标计数器
func (r *Registry) Increment(dest types.Destination, kind types.CounterKind) {
	e := r.observe(dest)
	if e == nil {
		return
	}
	switch kind {
	case types.CounterAll:
		e.all.Add(1)
	case types.CounterIdle:
		e.idle.Add(1)
	case types.CounterHit:
		e.hit.Add(1)
	case types.CounterMiss:
		e.miss.Add(1)
	}
}

// Reset 将目标资格恢复为 unknown，passive 目标由此重新参与学习
func (r *Registry) Reset(dest types.Destination) {
	e := r.lookup(dest)
	if e == nil {
		return
	}
	e.eligibility.Store(int32(types.EligibilityUnknown))
	e.closeNow.Store(false)
	logger.Info("目标资格已重置", "dest", dest)
}

// Reload 替换 ACL 规则
//
// 不再被允许的目标资格恢复为 unknown 并置 close_now，
// 其下一次关闭走正常路径，池中已有的连接由下一轮清扫回收。返回受影响的目标数。
func (r *Registry) Reload(allow, deny []string) (int, error) {
	a, err := newACL(allow, deny)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.acl = a
	affected := 0
	for dest, e := range r.entries {
		if a.permits(dest) {
			continue
		}
		e.eligibility.Store(int32(types.EligibilityUnknown))
		e.closeNow.Store(true)
		affected++
	}
	total := len(r.entries)
	r.mu.Unlock()

	logger.Info("ACL 已重新加载",
		"allow", len(allow),
		"deny", len(deny),
		"entries", total,
		"revoked", affected)
	return affected, nil
}

// Len 返回条目数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Get 返回单个目标的快照
func (r *Registry) Get(dest types.Destination) (Entry, bool) {
	e := r.lookup(dest)
	if e == nil {
		return Entry{}, false
	}
	return e.snapshot(dest), true
}

// Snapshot 返回所有条目的快照，按目标地址排序
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for dest, e := range r.entries {
		out = append(out, e.snapshot(dest))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Destination.AddrPort().Compare(out[j].Destination.AddrPort()) < 0
	})
	return out
}

func (e *entry) snapshot(dest types.Destination) Entry {
	return Entry{
		Destination: dest,
		Eligibility: types.Eligibility(e.eligibility.Load()),
		CloseNow:    e.closeNow.Load(),
		FirstSeen:   e.firstSeen,
		All:         e.all.Load(),
		Idle:        e.idle.Load(),
		Hit:         e.hit.Load(),
		Miss:        e.miss.Load(),
	}
}
