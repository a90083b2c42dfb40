package sockpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// spinLock 自旋锁
//
// 持锁期间不得阻塞，否则其他等待者会空转。
type spinLock struct {
	state atomic.Int32
}

func (l *spinLock) Lock() {
	for spins := 0; !l.state.CompareAndSwap(0, 1); spins++ {
		if spins&63 == 63 {
			runtime.Gosched()
		}
	}
}

func (l *spinLock) Unlock() {
	l.state.Store(0)
}

func newLock(spin bool) sync.Locker {
	if spin {
		return &spinLock{}
	}
	return &sync.Mutex{}
}
