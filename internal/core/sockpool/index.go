package sockpool

import (
	"time"

	"github.com/dep2p/go-connp/pkg/interfaces"
	"github.com/dep2p/go-connp/pkg/types"
)

const (
	nilIdx      int32 = -1
	maxCapacity       = 1 << 20
)

// slot 池槽位
//
// 链接字段均为槽位下标，nilIdx 表示链尾。
// hBucket/sBucket 记录所在桶，-1 表示不在该哈希链上。
type slot struct {
	dest         types.Destination
	conn         interfaces.PooledConn
	connID       uint64
	desc         types.Descriptor
	lastReleased time.Time
	uses         uint64

	allocated bool
	borrowed  bool

	hPrev, hNext int32
	sPrev, sNext int32
	tPrev, tNext int32
	fNext        int32

	hBucket, sBucket int32
}

func (s *slot) reset() {
	*s = slot{
		desc:    types.NoDescriptor,
		hPrev:   nilIdx,
		hNext:   nilIdx,
		sPrev:   nilIdx,
		sNext:   nilIdx,
		tPrev:   nilIdx,
		tNext:   nilIdx,
		fNext:   nilIdx,
		hBucket: -1,
		sBucket: -1,
	}
}

// index 槽位 arena 及四个索引
type index struct {
	slots     []slot
	primary   []int32
	secondary []int32

	travHead, travTail int32
	freeHead           int32

	allocated int
	borrowed  int
}

func newIndex(capacity, buckets int) index {
	idx := index{
		slots:     make([]slot, capacity),
		primary:   make([]int32, buckets),
		secondary: make([]int32, buckets),
		travHead:  nilIdx,
		travTail:  nilIdx,
		freeHead:  nilIdx,
	}
	for b := range idx.primary {
		idx.primary[b] = nilIdx
		idx.secondary[b] = nilIdx
	}
	// 逆序压栈，使下标 0 最先被分配
	for i := capacity - 1; i >= 0; i-- {
		idx.slots[i].reset()
		idx.pushFree(int32(i))
	}
	return idx
}

// ─────────────────────────────────────────────────────────────────────────
// 主哈希链
// ─────────────────────────────────────────────────────────────────────────

func (x *index) linkPrimary(i int32, bucket int) {
	s := &x.slots[i]
	head := x.primary[bucket]
	s.hPrev = nilIdx
	s.hNext = head
	if head != nilIdx {
		x.slots[head].hPrev = i
	}
	x.primary[bucket] = i
	s.hBucket = int32(bucket)
}

func (x *index) unlinkPrimary(i int32) {
	s := &x.slots[i]
	if s.hBucket < 0 {
		return
	}
	if s.hPrev != nilIdx {
		x.slots[s.hPrev].hNext = s.hNext
	} else {
		x.primary[s.hBucket] = s.hNext
	}
	if s.hNext != nilIdx {
		x.slots[s.hNext].hPrev = s.hPrev
	}
	s.hPrev, s.hNext, s.hBucket = nilIdx, nilIdx, -1
}

// ─────────────────────────────────────────────────────────────────────────
// 副哈希链
// ─────────────────────────────────────────────────────────────────────────

func (x *index) linkSecondary(i int32, bucket int) {
	s := &x.slots[i]
	head := x.secondary[bucket]
	s.sPrev = nilIdx
	s.sNext = head
	if head != nilIdx {
		x.slots[head].sPrev = i
	}
	x.secondary[bucket] = i
	s.sBucket = int32(bucket)
}

func (x *index) unlinkSecondary(i int32) {
	s := &x.slots[i]
	if s.sBucket < 0 {
		return
	}
	if s.sPrev != nilIdx {
		x.slots[s.sPrev].sNext = s.sNext
	} else {
		x.secondary[s.sBucket] = s.sNext
	}
	if s.sNext != nilIdx {
		x.slots[s.sNext].sPrev = s.sPrev
	}
	s.sPrev, s.sNext, s.sBucket = nilIdx, nilIdx, -1
}

// ─────────────────────────────────────────────────────────────────────────
// 遍历链表
// ─────────────────────────────────────────────────────────────────────────

func (x *index) linkTrav(i int32) {
	s := &x.slots[i]
	s.tNext = nilIdx
	s.tPrev = x.travTail
	if x.travTail != nilIdx {
		x.slots[x.travTail].tNext = i
	} else {
		x.travHead = i
	}
	x.travTail = i
}

func (x *index) unlinkTrav(i int32) {
	s := &x.slots[i]
	if s.tPrev != nilIdx {
		x.slots[s.tPrev].tNext = s.tNext
	} else if x.travHead == i {
		x.travHead = s.tNext
	}
	if s.tNext != nilIdx {
		x.slots[s.tNext].tPrev = s.tPrev
	} else if x.travTail == i {
		x.travTail = s.tPrev
	}
	s.tPrev, s.tNext = nilIdx, nilIdx
}

// ─────────────────────────────────────────────────────────────────────────
// 空闲栈
// ─────────────────────────────────────────────────────────────────────────

func (x *index) pushFree(i int32) {
	x.slots[i].fNext = x.freeHead
	x.freeHead = i
}

func (x *index) popFree() int32 {
	i := x.freeHead
	if i == nilIdx {
		return nilIdx
	}
	x.freeHead = x.slots[i].fNext
	x.slots[i].fNext = nilIdx
	return i
}

// ─────────────────────────────────────────────────────────────────────────
// 组合操作
// ─────────────────────────────────────────────────────────────────────────

// findSecondary 沿副哈希链查找 (dest, connID) 对应的槽位
func (x *index) findSecondary(dest types.Destination, connID uint64) int32 {
	bucket := hashDestConn(dest, connID, len(x.secondary))
	for i := x.secondary[bucket]; i != nilIdx; i = x.slots[i].sNext {
		s := &x.slots[i]
		if s.connID == connID && s.dest == dest {
			return i
		}
	}
	return nilIdx
}

// unlinkAll 从三个已分配索引中摘除槽位，并清零已分配状态
//
// 调用方决定槽位是立即复用还是压回空闲栈。
func (x *index) unlinkAll(i int32) {
	s := &x.slots[i]
	x.unlinkPrimary(i)
	x.unlinkSecondary(i)
	x.unlinkTrav(i)
	if s.borrowed {
		x.borrowed--
	}
	x.allocated--
	s.reset()
}

// free 摘除并归还到空闲栈
func (x *index) free(i int32) {
	x.unlinkAll(i)
	x.pushFree(i)
}

// allocate 初始化槽位并挂入三个已分配索引
func (x *index) allocate(i int32, dest types.Destination, c interfaces.PooledConn, now time.Time) {
	s := &x.slots[i]
	s.reset()
	s.allocated = true
	s.dest = dest
	s.conn = c
	s.connID = c.ID()
	s.lastReleased = now

	x.linkPrimary(i, hashDest(dest, len(x.primary)))
	x.linkTrav(i)
	x.linkSecondary(i, hashDestConn(dest, s.connID, len(x.secondary)))
	x.allocated++
}
