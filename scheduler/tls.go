package scheduler

import (
	"runtime"
	"strconv"
	"sync"
)

// goroutineID extracts the numeric id Go prints at the head of a goroutine's
// stack trace ("goroutine 123 [running]: ..."). This is the same technique
// used by several goroutine-local-storage shims in the wild, and the
// closest thing Go offers to platform thread-local storage. It is used for
// exactly one purpose: letting Wait, which its own fixed signature gives no
// other way to reach, discover whether the calling goroutine is already
// running a job.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	// b starts with "goroutine <id> ["
	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	i++
	start := i
	for i < len(b) && b[i] != ' ' {
		i++
	}
	id, _ := strconv.ParseInt(string(b[start:i]), 10, 64)
	return id
}

// workerTLS is a small registry mapping the calling goroutine to its
// workerState, so Wait can find "am I already running a job, and on whose
// behalf" without a parameter the fixed JobFunc signature has no room for.
type workerTLS struct {
	mu    sync.Mutex
	byGID map[int64]*workerState
}

func newWorkerTLS() *workerTLS {
	return &workerTLS{byGID: make(map[int64]*workerState)}
}

func (t *workerTLS) bind(ws *workerState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byGID[goroutineID()] = ws
}

func (t *workerTLS) unbind() {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byGID, goroutineID())
}

// current returns the workerState bound to the calling goroutine, or nil if
// none is bound (meaning the caller is not one of the dispatcher's worker
// goroutines and is not nested inside a running job).
func (t *workerTLS) current() *workerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byGID[goroutineID()]
}
