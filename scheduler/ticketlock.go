package scheduler

import (
	"runtime"
	"sync/atomic"
)

// ticketLock is a fair spinlock: each caller atomically draws a ticket and
// spins until the lock's serving counter reaches it. Contended callers are
// served in arrival order, unlike a plain sync.Mutex.
type ticketLock struct {
	ticket uint32
	users  uint32
}

func (l *ticketLock) Lock() {
	me := atomic.AddUint32(&l.users, 1) - 1
	for atomic.LoadUint32(&l.ticket) != me {
		runtime.Gosched()
	}
}

func (l *ticketLock) Unlock() {
	atomic.AddUint32(&l.ticket, 1)
}

// TryLock attempts to take the lock without spinning, succeeding only if
// no one else holds or is waiting on it.
func (l *ticketLock) TryLock() bool {
	users := atomic.LoadUint32(&l.users)
	ticket := atomic.LoadUint32(&l.ticket)
	if users != ticket {
		return false
	}
	return atomic.CompareAndSwapUint32(&l.users, users, users+1)
}
