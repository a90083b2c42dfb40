package sockpool

import (
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-connp/pkg/types"
)

// ============================================================================
//                              Mock 实现
// ============================================================================

var nextMockID atomic.Uint64

// mockConn 模拟已建立连接
type mockConn struct {
	id          uint64
	established atomic.Bool
	closed      atomic.Bool
}

func newMockConn() *mockConn {
	c := &mockConn{id: nextMockID.Add(1)}
	c.established.Store(true)
	return c
}

func (c *mockConn) ID() uint64        { return c.id }
func (c *mockConn) Established() bool { return c.established.Load() && !c.closed.Load() }
func (c *mockConn) Close() error {
	c.closed.Store(true)
	return nil
}

// mockCloseQueue 记录入队的描述符
type mockCloseQueue struct {
	mu     sync.Mutex
	descs  []types.Descriptor
	refuse bool
}

func (q *mockCloseQueue) EnqueueClose(d types.Descriptor) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.refuse {
		return false
	}
	q.descs = append(q.descs, d)
	return true
}

func (q *mockCloseQueue) setRefuse(v bool) {
	q.mu.Lock()
	q.refuse = v
	q.mu.Unlock()
}

func (q *mockCloseQueue) enqueued() []types.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]types.Descriptor(nil), q.descs...)
}

// mockRegistry 模拟目标登记表
type mockRegistry struct {
	mu          sync.Mutex
	eligibility map[types.Destination]types.Eligibility
	revoked     map[types.Destination]bool
	counters    map[types.Destination]map[types.CounterKind]int
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		eligibility: make(map[types.Destination]types.Eligibility),
		revoked:     make(map[types.Destination]bool),
		counters:    make(map[types.Destination]map[types.CounterKind]int),
	}
}

func (r *mockRegistry) Allowed(dest types.Destination) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.revoked[dest]
}

// revoke 模拟 ACL 重载后目标不再被允许
func (r *mockRegistry) revoke(dest types.Destination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[dest] = true
}

func (r *mockRegistry) Eligibility(dest types.Destination) types.Eligibility {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eligibility[dest]
}

func (r *mockRegistry) SetEligibility(dest types.Destination, e types.Eligibility) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eligibility[dest] = e
}

func (r *mockRegistry) Promote(dest types.Destination) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.eligibility[dest] {
	case types.EligibilityUnknown:
		r.eligibility[dest] = types.EligibilityPositive
		return true
	case types.EligibilityPositive:
		return true
	}
	return false
}

func (r *mockRegistry) TakeCloseNow(types.Destination) bool { return false }

func (r *mockRegistry) Increment(dest types.Destination, kind types.CounterKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters[dest] == nil {
		r.counters[dest] = make(map[types.CounterKind]int)
	}
	r.counters[dest][kind]++
}

func (r *mockRegistry) count(dest types.Destination, kind types.CounterKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[dest][kind]
}
