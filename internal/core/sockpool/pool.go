package sockpool

import (
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/lib/log"
	"github.com/dep2p/go-connp/pkg/types"
)

var logger = log.Logger("core/sockpool")

var _ interfaces.SocketPool = (*Pool)(nil)

// Stats 池统计
type Stats struct {
	Capacity  int
	Allocated int
	Borrowed  int
	Free      int

	Inserts   uint64
	Rejects   uint64
	Evictions uint64
	Borrows   uint64
	Releases  uint64
	Sweeps    uint64
	Reclaimed uint64
}

// Pool 套接字池
type Pool struct {
	cfg    Config
	mu     sync.Locker
	idx    index
	closer interfaces.CloseQueue
	reg    interfaces.Registry
	clock  clock.Clock
	closed bool

	inserts   uint64
	rejects   uint64
	evictions uint64
	borrows   uint64
	releases  uint64
	sweeps    uint64
	reclaimed uint64
}

// New 创建套接字池
//
// closer 接收被淘汰或过期连接的描述符；reg 可为 nil，
// 非 nil 时清扫会回收已降级为 passive 的目标并递增 idle 计数。
func New(cfg Config, closer interfaces.CloseQueue, reg interfaces.Registry, clk clock.Clock) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if closer == nil {
		return nil, ErrNoCloseQueue
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Pool{
		cfg:    cfg,
		mu:     newLock(cfg.Spin),
		idx:    newIndex(cfg.Capacity, cfg.bucketCount()),
		closer: closer,
		reg:    reg,
		clock:  clk,
	}, nil
}

// Borrow 借出一个到 dest 的已建立连接
//
// 借出的槽位从主哈希链摘除，在 Release 之前不会再被借出。
func (p *Pool) Borrow(dest types.Destination) (interfaces.PooledConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false
	}

	bucket := hashDest(dest, len(p.idx.primary))
	for i := p.idx.primary[bucket]; i != nilIdx; {
		s := &p.idx.slots[i]
		next := s.hNext
		if s.dest == dest && !s.borrowed && s.conn.Established() {
			p.idx.unlinkPrimary(i)
			s.borrowed = true
			s.uses++
			p.idx.borrowed++
			p.borrows++
			return s.conn, true
		}
		i = next
	}
	return nil, false
}

// Release 归还借出的连接
//
// 未找到返回 false；槽位未处于借出状态（重复归还）时不做任何修改并返回 false。
func (p *Pool) Release(dest types.Destination, c interfaces.PooledConn) bool {
	if c == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	i := p.idx.findSecondary(dest, c.ID())
	if i == nilIdx {
		return false
	}
	s := &p.idx.slots[i]
	if !s.borrowed {
		return false
	}

	s.borrowed = false
	s.lastReleased = p.clock.Now()
	p.idx.borrowed--
	p.idx.linkPrimary(i, hashDest(dest, len(p.idx.primary)))
	p.releases++
	return true
}

// Insert 将连接放入池中
//
// 优先使用空闲槽位；池满且启用 LRU 时淘汰一个候选槽位，
// 淘汰的描述符交给关闭队列。无槽位可用时返回 false。
func (p *Pool) Insert(dest types.Destination, c interfaces.PooledConn) bool {
	if c == nil || !dest.IsValid() {
		return false
	}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return false
	}

	if p.idx.findSecondary(dest, c.ID()) != nilIdx {
		p.rejects++
		p.mu.Unlock()
		logger.Warn("重复放入同一连接，已拒绝", "dest", dest, "conn", c.ID())
		return false
	}

	var (
		evicted     types.Destination
		evictedDesc = types.NoDescriptor
	)
	i := p.idx.popFree()
	if i == nilIdx && p.cfg.EnableLRU {
		i, evicted, evictedDesc = p.evictLocked(dest)
	}
	if i == nilIdx {
		p.rejects++
		p.mu.Unlock()
		logger.Debug("套接字池已满，拒绝放入", "dest", dest)
		return false
	}

	p.idx.allocate(i, dest, c, p.clock.Now())
	p.inserts++
	p.mu.Unlock()

	if evictedDesc.Valid() {
		logger.Debug("淘汰最少使用的槽位", "evicted", evicted, "desc", int(evictedDesc), "for", dest)
	}
	return true
}

// evictLocked 选出并摘除一个淘汰候选，返回可复用的槽位下标
//
// 调用方必须持有池锁。关闭队列拒绝时不做任何修改。
func (p *Pool) evictLocked(dest types.Destination) (int32, types.Destination, types.Descriptor) {
	best := nilIdx
	for i := p.idx.travHead; i != nilIdx; i = p.idx.slots[i].tNext {
		s := &p.idx.slots[i]
		if s.borrowed || s.dest == dest || !s.desc.Valid() {
			continue
		}
		if best == nilIdx || lessRecentlyUsed(s, i, &p.idx.slots[best], best) {
			best = i
		}
	}
	if best == nilIdx {
		return nilIdx, types.Destination{}, types.NoDescriptor
	}

	victim := &p.idx.slots[best]
	victimDest, victimDesc := victim.dest, victim.desc
	if !p.closer.EnqueueClose(victimDesc) {
		return nilIdx, types.Destination{}, types.NoDescriptor
	}

	p.idx.unlinkAll(best)
	p.evictions++
	return best, victimDest, victimDesc
}

// lessRecentlyUsed 淘汰顺序：使用次数少者优先，其次最早归还者，其次下标小者
func lessRecentlyUsed(a *slot, ai int32, b *slot, bi int32) bool {
	if a.uses != b.uses {
		return a.uses < b.uses
	}
	if !a.lastReleased.Equal(b.lastReleased) {
		return a.lastReleased.Before(b.lastReleased)
	}
	return ai < bi
}

// Attach 记录连接在回收器中的描述符，之后该槽位才可被淘汰或清扫
func (p *Pool) Attach(dest types.Destination, c interfaces.PooledConn, d types.Descriptor) bool {
	if c == nil || !d.Valid() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	i := p.idx.findSecondary(dest, c.ID())
	if i == nilIdx {
		return false
	}
	p.idx.slots[i].desc = d
	return true
}

// Discard 移除借出中的槽位，连接所有权随之交还借用方
//
// 返回槽位的描述符，供调用方从回收器注销。槽位未处于借出状态时返回 false。
func (p *Pool) Discard(dest types.Destination, c interfaces.PooledConn) (types.Descriptor, bool) {
	if c == nil {
		return types.NoDescriptor, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return types.NoDescriptor, false
	}

	i := p.idx.findSecondary(dest, c.ID())
	if i == nilIdx || !p.idx.slots[i].borrowed {
		return types.NoDescriptor, false
	}
	d := p.idx.slots[i].desc
	p.idx.free(i)
	return d, true
}

// Withdraw 取回刚放入且尚未借出的槽位，连接所有权交还调用方
//
// 用于放入后发现目标已被并发降级的情形。槽位已被借出、淘汰或清扫时
// 所有权已经转移，返回 false。
func (p *Pool) Withdraw(dest types.Destination, c interfaces.PooledConn) (types.Descriptor, bool) {
	if c == nil {
		return types.NoDescriptor, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return types.NoDescriptor, false
	}

	i := p.idx.findSecondary(dest, c.ID())
	if i == nilIdx || p.idx.slots[i].borrowed {
		return types.NoDescriptor, false
	}
	d := p.idx.slots[i].desc
	p.idx.free(i)
	return d, true
}

// Sweep 回收失效、空闲超时、目标被降级或不再被允许的槽位
//
// 借出中的槽位无论状态如何都不处理；未登记描述符的槽位无人能关闭，同样跳过。
// 关闭队列拒绝的槽位保留到下一轮。
func (p *Pool) Sweep() types.SweepResult {
	var res types.SweepResult

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return res
	}

	now := p.clock.Now()
	for i := p.idx.travHead; i != nilIdx; {
		s := &p.idx.slots[i]
		next := s.tNext
		res.Scanned++

		if s.borrowed || !s.desc.Valid() {
			i = next
			continue
		}

		var counter *int
		switch {
		case !s.conn.Established():
			counter = &res.Dead
		case p.reg != nil && p.reg.Eligibility(s.dest) == types.EligibilityPassive:
			counter = &res.Passive
		case p.reg != nil && !p.reg.Allowed(s.dest):
			counter = &res.Revoked
		case now.Sub(s.lastReleased) > p.cfg.IdleTimeout:
			counter = &res.Idle
		default:
			i = next
			continue
		}

		if !p.closer.EnqueueClose(s.desc) {
			res.Deferred++
			i = next
			continue
		}
		if counter == &res.Idle && p.reg != nil {
			p.reg.Increment(s.dest, types.CounterIdle)
		}
		*counter++
		p.idx.free(i)
		i = next
	}

	p.sweeps++
	p.reclaimed += uint64(res.Reclaimed())
	p.mu.Unlock()

	if res.Reclaimed() > 0 || res.Deferred > 0 {
		logger.Debug("清扫完成",
			"scanned", res.Scanned,
			"dead", res.Dead,
			"idle", res.Idle,
			"passive", res.Passive,
			"revoked", res.Revoked,
			"deferred", res.Deferred)
	}
	return res
}

// Drain 清空池并关闭后续操作
//
// closeDescs 为池自有连接的描述符，由回收器关闭；lentDescs 为借出中连接的描述符，
// 回收器只注销不关闭，连接归借用方所有。未登记描述符的池自有连接在此直接关闭。
func (p *Pool) Drain() (closeDescs, lentDescs []types.Descriptor) {
	var orphans []interfaces.PooledConn

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil
	}
	for i := p.idx.travHead; i != nilIdx; {
		s := &p.idx.slots[i]
		next := s.tNext
		switch {
		case s.borrowed:
			if s.desc.Valid() {
				lentDescs = append(lentDescs, s.desc)
			}
		case s.desc.Valid():
			closeDescs = append(closeDescs, s.desc)
		default:
			orphans = append(orphans, s.conn)
		}
		p.idx.free(i)
		i = next
	}
	p.closed = true
	p.mu.Unlock()

	for _, c := range orphans {
		_ = c.Close()
	}

	logger.Info("套接字池已清空",
		"close", len(closeDescs),
		"lent", len(lentDescs),
		"orphans", len(orphans))
	return closeDescs, lentDescs
}

// Stats 返回池统计
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Capacity:  p.cfg.Capacity,
		Allocated: p.idx.allocated,
		Borrowed:  p.idx.borrowed,
		Free:      p.cfg.Capacity - p.idx.allocated,
		Inserts:   p.inserts,
		Rejects:   p.rejects,
		Evictions: p.evictions,
		Borrows:   p.borrows,
		Releases:  p.releases,
		Sweeps:    p.sweeps,
		Reclaimed: p.reclaimed,
	}
}

// Capacity 返回池容量
func (p *Pool) Capacity() int {
	return p.cfg.Capacity
}
