package sockpool

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/types"
)

var (
	destX = types.MustDestination("10.0.0.1:80")
	destY = types.MustDestination("10.0.0.2:80")
	destZ = types.MustDestination("10.0.0.3:443")
)

type poolFixture struct {
	pool  *Pool
	queue *mockCloseQueue
	reg   *mockRegistry
	clock *clock.Mock
}

func newFixture(t *testing.T, capacity int, opts ...func(*Config)) *poolFixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Capacity = capacity
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &poolFixture{
		queue: &mockCloseQueue{},
		reg:   newMockRegistry(),
		clock: clock.NewMock(),
	}
	p, err := New(cfg, f.queue, f.reg, f.clock)
	require.NoError(t, err)
	f.pool = p
	return f
}

// insertAttached 放入并登记描述符，使槽位可被淘汰和清扫
func (f *poolFixture) insertAttached(t *testing.T, dest types.Destination, c interfaces.PooledConn, d types.Descriptor) {
	t.Helper()
	require.True(t, f.pool.Insert(dest, c))
	require.True(t, f.pool.Attach(dest, c, d))
}

// ============================================================================
//                              构造
// ============================================================================

// TestNew_InvalidConfig 测试无效配置
func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0
	_, err := New(cfg, &mockCloseQueue{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.IdleTimeout = 0
	_, err = New(cfg, &mockCloseQueue{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoCloseQueue)

	t.Log("✅ 无效配置被拒绝")
}

// TestConfig_Default 测试默认配置
func TestConfig_Default(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 200, cfg.Capacity)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.True(t, cfg.Spin)
	assert.True(t, cfg.EnableLRU)
	assert.Equal(t, 101, cfg.bucketCount())
}

// ============================================================================
//                              基本行为
// ============================================================================

// TestPool_TwoDestinationsCoexist 测试两个目标互不淘汰
func TestPool_TwoDestinationsCoexist(t *testing.T) {
	f := newFixture(t, 2)
	c1, c2 := newMockConn(), newMockConn()

	require.True(t, f.pool.Insert(destX, c1))
	require.True(t, f.pool.Insert(destY, c2))
	assert.Empty(t, f.queue.enqueued(), "不应发生淘汰")

	got, ok := f.pool.Borrow(destX)
	require.True(t, ok)
	assert.Same(t, c1, got)

	assert.True(t, f.pool.Release(destX, c1))

	stats := f.pool.Stats()
	assert.Equal(t, 2, stats.Allocated)
	assert.Equal(t, 0, stats.Borrowed)

	t.Log("✅ 两个目标互不淘汰")
}

// TestPool_FullEvictsOtherDestination 测试池满时淘汰其他目标
func TestPool_FullEvictsOtherDestination(t *testing.T) {
	f := newFixture(t, 1)
	c1, c2 := newMockConn(), newMockConn()

	f.insertAttached(t, destX, c1, 7)
	require.True(t, f.pool.Insert(destY, c2))

	assert.Equal(t, []types.Descriptor{7}, f.queue.enqueued())

	_, ok := f.pool.Borrow(destX)
	assert.False(t, ok, "X 已被淘汰")

	got, ok := f.pool.Borrow(destY)
	require.True(t, ok)
	assert.Same(t, c2, got)
	assert.Equal(t, uint64(1), f.pool.Stats().Evictions)

	t.Log("✅ 池满时淘汰其他目标")
}

// TestPool_BorrowedNotEvicted 测试借出中的槽位不被淘汰
func TestPool_BorrowedNotEvicted(t *testing.T) {
	f := newFixture(t, 1)
	c1, c2 := newMockConn(), newMockConn()

	f.insertAttached(t, destX, c1, 3)
	_, ok := f.pool.Borrow(destX)
	require.True(t, ok)

	assert.False(t, f.pool.Insert(destY, c2))
	assert.Empty(t, f.queue.enqueued())
	assert.True(t, f.pool.Release(destX, c1))

	t.Log("✅ 借出中的槽位不被淘汰")
}

// ============================================================================
//                              基本性质
// ============================================================================

// TestPool_RoundTrip 测试放入后借出返回同一连接
func TestPool_RoundTrip(t *testing.T) {
	f := newFixture(t, 4)
	c := newMockConn()

	require.True(t, f.pool.Insert(destZ, c))
	got, ok := f.pool.Borrow(destZ)
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, f.pool.Stats().Borrowed)

	// 借出后不可再次借出
	_, ok = f.pool.Borrow(destZ)
	assert.False(t, ok)

	t.Log("✅ 往返正确")
}

// TestPool_BorrowMiss 测试无匹配连接
func TestPool_BorrowMiss(t *testing.T) {
	f := newFixture(t, 4)
	_, ok := f.pool.Borrow(destX)
	assert.False(t, ok)

	// 已断开的连接不会被借出
	c := newMockConn()
	require.True(t, f.pool.Insert(destX, c))
	c.established.Store(false)
	_, ok = f.pool.Borrow(destX)
	assert.False(t, ok)
}

// TestPool_IdempotentRelease 测试重复归还
func TestPool_IdempotentRelease(t *testing.T) {
	f := newFixture(t, 4)
	c := newMockConn()

	require.True(t, f.pool.Insert(destX, c))
	_, ok := f.pool.Borrow(destX)
	require.True(t, ok)

	assert.True(t, f.pool.Release(destX, c))
	before := f.pool.Stats()
	assert.False(t, f.pool.Release(destX, c), "第二次归还为空操作")
	after := f.pool.Stats()
	assert.Equal(t, before, after)

	// 链未损坏：仍能借出一次且仅一次
	got, ok := f.pool.Borrow(destX)
	require.True(t, ok)
	assert.Same(t, c, got)
	_, ok = f.pool.Borrow(destX)
	assert.False(t, ok)

	// 未知连接
	assert.False(t, f.pool.Release(destX, newMockConn()))
	assert.False(t, f.pool.Release(destX, nil))

	t.Log("✅ 重复归还为空操作")
}

// TestPool_BorrowExclusive 测试并发借出的排他性
func TestPool_BorrowExclusive(t *testing.T) {
	for _, spin := range []bool{true, false} {
		f := newFixture(t, 8, func(c *Config) { c.Spin = spin })
		c := newMockConn()
		require.True(t, f.pool.Insert(destX, c))

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			holds int
			peak  int
		)
		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 200; n++ {
					got, ok := f.pool.Borrow(destX)
					if !ok {
						continue
					}
					mu.Lock()
					holds++
					if holds > peak {
						peak = holds
					}
					mu.Unlock()

					mu.Lock()
					holds--
					mu.Unlock()
					assert.True(t, f.pool.Release(destX, got))
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, peak, "同一连接同时只有一个借用方")
		assert.Equal(t, 0, f.pool.Stats().Borrowed)
	}

	t.Log("✅ 并发借出排他")
}

// TestPool_DuplicateInsert 测试重复放入
func TestPool_DuplicateInsert(t *testing.T) {
	f := newFixture(t, 4)
	c := newMockConn()

	require.True(t, f.pool.Insert(destX, c))
	assert.False(t, f.pool.Insert(destX, c))
	assert.Equal(t, 1, f.pool.Stats().Allocated)
	assert.Equal(t, uint64(1), f.pool.Stats().Rejects)

	// 同一连接放入不同目标不算重复
	assert.True(t, f.pool.Insert(destY, c))

	// 无效参数
	assert.False(t, f.pool.Insert(types.Destination{}, newMockConn()))
	assert.False(t, f.pool.Insert(destX, nil))

	t.Log("✅ 重复放入被拒绝")
}

// TestPool_CapacityBound 测试容量上限
func TestPool_CapacityBound(t *testing.T) {
	f := newFixture(t, 3, func(c *Config) { c.EnableLRU = false })

	accepted := 0
	for i := 0; i < 10; i++ {
		if f.pool.Insert(destX, newMockConn()) {
			accepted++
		}
		assert.LessOrEqual(t, f.pool.Stats().Allocated, 3)
	}
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 0, f.pool.Stats().Free)

	t.Log("✅ 容量上限正确")
}

// ============================================================================
//                              淘汰
// ============================================================================

// TestPool_EvictLowestUses 测试淘汰使用次数最少者
func TestPool_EvictLowestUses(t *testing.T) {
	f := newFixture(t, 2)
	cx, cy := newMockConn(), newMockConn()

	f.insertAttached(t, destX, cx, 1)
	f.insertAttached(t, destY, cy, 2)

	// X 被使用过一次
	_, ok := f.pool.Borrow(destX)
	require.True(t, ok)
	require.True(t, f.pool.Release(destX, cx))

	require.True(t, f.pool.Insert(destZ, newMockConn()))
	assert.Equal(t, []types.Descriptor{2}, f.queue.enqueued(), "Y 使用次数更少")

	t.Log("✅ 按使用次数淘汰")
}

// TestPool_EvictTieBreak 测试使用次数相同时淘汰最早归还者
func TestPool_EvictTieBreak(t *testing.T) {
	f := newFixture(t, 2)
	cx, cy := newMockConn(), newMockConn()

	f.insertAttached(t, destX, cx, 1)
	f.clock.Add(time.Second)
	f.insertAttached(t, destY, cy, 2)

	// 两者各使用一次，Y 先归还
	_, ok := f.pool.Borrow(destX)
	require.True(t, ok)
	_, ok = f.pool.Borrow(destY)
	require.True(t, ok)
	f.clock.Add(time.Second)
	require.True(t, f.pool.Release(destY, cy))
	f.clock.Add(time.Second)
	require.True(t, f.pool.Release(destX, cx))

	require.True(t, f.pool.Insert(destZ, newMockConn()))
	assert.Equal(t, []types.Descriptor{2}, f.queue.enqueued())

	t.Log("✅ 平局按归还时间")
}

// TestPool_EvictTieBreakIndex 测试完全相同时淘汰下标小者
func TestPool_EvictTieBreakIndex(t *testing.T) {
	f := newFixture(t, 2)

	f.insertAttached(t, destX, newMockConn(), 1)
	f.insertAttached(t, destY, newMockConn(), 2)

	require.True(t, f.pool.Insert(destZ, newMockConn()))
	assert.Equal(t, []types.Descriptor{1}, f.queue.enqueued())
}

// TestPool_EvictSkips 测试淘汰候选的排除条件
func TestPool_EvictSkips(t *testing.T) {
	t.Run("同目标不淘汰", func(t *testing.T) {
		f := newFixture(t, 1)
		f.insertAttached(t, destX, newMockConn(), 1)
		assert.False(t, f.pool.Insert(destX, newMockConn()))
		assert.Empty(t, f.queue.enqueued())
	})

	t.Run("无描述符不淘汰", func(t *testing.T) {
		f := newFixture(t, 1)
		require.True(t, f.pool.Insert(destX, newMockConn()))
		assert.False(t, f.pool.Insert(destY, newMockConn()))
	})

	t.Run("LRU 关闭", func(t *testing.T) {
		f := newFixture(t, 1, func(c *Config) { c.EnableLRU = false })
		f.insertAttached(t, destX, newMockConn(), 1)
		assert.False(t, f.pool.Insert(destY, newMockConn()))
	})

	t.Run("关闭队列拒绝", func(t *testing.T) {
		f := newFixture(t, 1)
		c := newMockConn()
		f.insertAttached(t, destX, c, 1)
		f.queue.setRefuse(true)

		assert.False(t, f.pool.Insert(destY, newMockConn()))

		// X 保持原状
		got, ok := f.pool.Borrow(destX)
		require.True(t, ok)
		assert.Same(t, c, got)
	})

	t.Log("✅ 淘汰排除条件正确")
}

// ============================================================================
//                              Attach / Discard
// ============================================================================

// TestPool_Attach 测试登记描述符
func TestPool_Attach(t *testing.T) {
	f := newFixture(t, 2)
	c := newMockConn()

	assert.False(t, f.pool.Attach(destX, c, 1), "未放入")
	require.True(t, f.pool.Insert(destX, c))
	assert.False(t, f.pool.Attach(destX, c, types.NoDescriptor))
	assert.True(t, f.pool.Attach(destX, c, 1))
}

// TestPool_Discard 测试移除借出中的槽位
func TestPool_Discard(t *testing.T) {
	f := newFixture(t, 2)
	c := newMockConn()
	f.insertAttached(t, destX, c, 5)

	_, ok := f.pool.Discard(destX, c)
	assert.False(t, ok, "未借出的槽位不能移除")

	_, ok = f.pool.Borrow(destX)
	require.True(t, ok)

	d, ok := f.pool.Discard(destX, c)
	require.True(t, ok)
	assert.Equal(t, types.Descriptor(5), d)

	stats := f.pool.Stats()
	assert.Equal(t, 0, stats.Allocated)
	assert.Equal(t, 0, stats.Borrowed)
	assert.False(t, c.closed.Load(), "所有权交还借用方，不关闭")
	assert.False(t, f.pool.Release(destX, c))

	t.Log("✅ Discard 正确")
}

// TestPool_Withdraw 测试取回未借出的槽位
func TestPool_Withdraw(t *testing.T) {
	f := newFixture(t, 2)
	c := newMockConn()
	f.insertAttached(t, destX, c, 7)

	d, ok := f.pool.Withdraw(destX, c)
	require.True(t, ok)
	assert.Equal(t, types.Descriptor(7), d)
	assert.Equal(t, 0, f.pool.Stats().Allocated)
	assert.False(t, c.closed.Load(), "所有权交还调用方，不关闭")
	assert.Empty(t, f.queue.enqueued())

	_, ok = f.pool.Withdraw(destX, c)
	assert.False(t, ok, "槽位已不存在")

	// 已被借出的槽位归借用方所有
	b := newMockConn()
	f.insertAttached(t, destY, b, 8)
	_, ok = f.pool.Borrow(destY)
	require.True(t, ok)
	_, ok = f.pool.Withdraw(destY, b)
	assert.False(t, ok)
	assert.Equal(t, 1, f.pool.Stats().Borrowed)

	_, ok = f.pool.Withdraw(destX, nil)
	assert.False(t, ok)

	t.Log("✅ Withdraw 正确")
}

// ============================================================================
//                              清扫
// ============================================================================

// TestPool_SweepIdle 测试空闲超时回收
func TestPool_SweepIdle(t *testing.T) {
	f := newFixture(t, 4)
	f.insertAttached(t, destX, newMockConn(), 1)

	res := f.pool.Sweep()
	assert.Equal(t, 0, res.Reclaimed())

	f.clock.Add(31 * time.Second)
	res = f.pool.Sweep()
	assert.Equal(t, 1, res.Idle)
	assert.Equal(t, []types.Descriptor{1}, f.queue.enqueued())
	assert.Equal(t, 1, f.reg.count(destX, types.CounterIdle))
	assert.Equal(t, 0, f.pool.Stats().Allocated)

	t.Log("✅ 空闲超时回收")
}

// TestPool_SweepDead 测试已断开连接回收
func TestPool_SweepDead(t *testing.T) {
	f := newFixture(t, 4)
	c := newMockConn()
	f.insertAttached(t, destX, c, 1)
	c.established.Store(false)

	res := f.pool.Sweep()
	assert.Equal(t, 1, res.Dead)
	assert.Equal(t, 0, f.reg.count(destX, types.CounterIdle))
}

// TestPool_SweepPassive 测试降级目标回收
func TestPool_SweepPassive(t *testing.T) {
	f := newFixture(t, 4)
	f.insertAttached(t, destX, newMockConn(), 1)
	f.insertAttached(t, destY, newMockConn(), 2)
	f.reg.SetEligibility(destX, types.EligibilityPassive)

	res := f.pool.Sweep()
	assert.Equal(t, 1, res.Passive)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, []types.Descriptor{1}, f.queue.enqueued())
}

// TestPool_SweepRevoked 测试 ACL 重载后不再被允许的目标回收
func TestPool_SweepRevoked(t *testing.T) {
	f := newFixture(t, 4)
	f.insertAttached(t, destX, newMockConn(), 1)
	f.insertAttached(t, destY, newMockConn(), 2)
	f.reg.revoke(destY)

	res := f.pool.Sweep()
	assert.Equal(t, 1, res.Revoked)
	assert.Equal(t, 1, res.Reclaimed())
	assert.Equal(t, []types.Descriptor{2}, f.queue.enqueued())
	assert.Equal(t, 1, f.pool.Stats().Allocated)
	assert.Equal(t, 0, f.reg.count(destY, types.CounterIdle), "不计为空闲回收")

	_, ok := f.pool.Borrow(destX)
	assert.True(t, ok, "仍被允许的目标不受影响")

	t.Log("✅ 不再被允许的目标回收")
}

// TestPool_SweepSafety 测试借出中的槽位不被清扫
func TestPool_SweepSafety(t *testing.T) {
	f := newFixture(t, 4)
	c := newMockConn()
	f.insertAttached(t, destX, c, 1)

	_, ok := f.pool.Borrow(destX)
	require.True(t, ok)

	f.clock.Add(time.Hour)
	c.established.Store(false)
	f.reg.SetEligibility(destX, types.EligibilityPassive)

	res := f.pool.Sweep()
	assert.Equal(t, 0, res.Reclaimed())
	assert.Empty(t, f.queue.enqueued())
	assert.Equal(t, 1, f.pool.Stats().Borrowed)

	t.Log("✅ 借出中的槽位不被清扫")
}

// TestPool_SweepDeferred 测试关闭队列拒绝时保留槽位
func TestPool_SweepDeferred(t *testing.T) {
	f := newFixture(t, 4)
	f.insertAttached(t, destX, newMockConn(), 1)
	f.clock.Add(time.Minute)

	f.queue.setRefuse(true)
	res := f.pool.Sweep()
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, 1, f.pool.Stats().Allocated)

	f.queue.setRefuse(false)
	res = f.pool.Sweep()
	assert.Equal(t, 1, res.Idle)
	assert.Equal(t, 0, f.pool.Stats().Allocated)
}

// TestPool_SweepSkipsUndescribed 测试未登记描述符的槽位被跳过
func TestPool_SweepSkipsUndescribed(t *testing.T) {
	f := newFixture(t, 4)
	require.True(t, f.pool.Insert(destX, newMockConn()))
	f.clock.Add(time.Minute)

	res := f.pool.Sweep()
	assert.Equal(t, 0, res.Reclaimed())
	assert.Equal(t, 1, f.pool.Stats().Allocated)
}

// ============================================================================
//                              Drain
// ============================================================================

// TestPool_Drain 测试清空池
func TestPool_Drain(t *testing.T) {
	f := newFixture(t, 4)
	idle, lent, orphan := newMockConn(), newMockConn(), newMockConn()

	f.insertAttached(t, destX, idle, 1)
	f.insertAttached(t, destY, lent, 2)
	require.True(t, f.pool.Insert(destZ, orphan))
	_, ok := f.pool.Borrow(destY)
	require.True(t, ok)

	closeDescs, lentDescs := f.pool.Drain()
	assert.Equal(t, []types.Descriptor{1}, closeDescs)
	assert.Equal(t, []types.Descriptor{2}, lentDescs)
	assert.True(t, orphan.closed.Load())
	assert.False(t, idle.closed.Load(), "由回收器关闭")
	assert.False(t, lent.closed.Load(), "归借用方所有")

	// 清空后所有操作失效
	assert.False(t, f.pool.Insert(destX, newMockConn()))
	_, ok = f.pool.Borrow(destX)
	assert.False(t, ok)
	assert.False(t, f.pool.Release(destY, lent))
	assert.Equal(t, 0, f.pool.Sweep().Scanned)
	assert.Equal(t, 0, f.pool.Stats().Allocated)

	t.Log("✅ Drain 正确")
}

// ============================================================================
//                              索引一致性
// ============================================================================

// TestPool_IndexConsistency 测试混合操作后索引一致
func TestPool_IndexConsistency(t *testing.T) {
	f := newFixture(t, 8)
	conns := make(map[types.Destination][]*mockConn)
	dests := []types.Destination{destX, destY, destZ}

	d := types.Descriptor(0)
	for round := 0; round < 5; round++ {
		for _, dest := range dests {
			c := newMockConn()
			if f.pool.Insert(dest, c) {
				d++
				require.True(t, f.pool.Attach(dest, c, d))
				conns[dest] = append(conns[dest], c)
			}
		}
		for _, dest := range dests {
			if got, ok := f.pool.Borrow(dest); ok {
				require.True(t, f.pool.Release(dest, got))
			}
		}
		f.clock.Add(10 * time.Second)
		f.pool.Sweep()
	}

	checkIndex(t, &f.pool.idx)
	t.Log("✅ 索引一致")
}

// checkIndex 校验四个索引与计数的一致性
func checkIndex(t *testing.T, x *index) {
	t.Helper()

	inTrav := make(map[int32]bool)
	for i := x.travHead; i != nilIdx; i = x.slots[i].tNext {
		require.True(t, x.slots[i].allocated)
		inTrav[i] = true
	}
	assert.Len(t, inTrav, x.allocated)

	inFree := make(map[int32]bool)
	for i := x.freeHead; i != nilIdx; i = x.slots[i].fNext {
		require.False(t, x.slots[i].allocated)
		inFree[i] = true
	}
	assert.Equal(t, len(x.slots), len(inTrav)+len(inFree))

	borrowed := 0
	for i := range x.slots {
		s := &x.slots[i]
		if !s.allocated {
			continue
		}
		assert.NotEqual(t, int32(-1), s.sBucket)
		if s.borrowed {
			borrowed++
			assert.Equal(t, int32(-1), s.hBucket)
		} else {
			assert.NotEqual(t, int32(-1), s.hBucket)
		}
	}
	assert.Equal(t, x.borrowed, borrowed)
}
