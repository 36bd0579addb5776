// Package scheduler implements a cooperative, priority-aware job
// dispatcher: application code submits batches of short callbacks across a
// fixed pool of worker goroutines, and a job may Wait on another batch's
// handle from inside its own callback without consuming an extra worker
// slot: nested waits recurse on the calling goroutine's own growable
// stack rather than switching to a separate auxiliary one.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fiberjob/scheduler/internal/telemetry"
)

// Dispatcher is the scheduler core: two fiber pools (small/big), priority
// ready queues, a counter pool, and a fixed set of worker goroutines. There
// is no package-level singleton; callers thread the *Dispatcher returned
// by Init explicitly.
type Dispatcher struct {
	cfg Config

	small *fiberPool
	big   *fiberPool

	queues  *readyQueues
	jobLock ticketLock

	counters    *fixedPool[Counter]
	counterLock ticketLock

	sem  *semaphore
	tls  *workerTLS
	cond *sync.Cond
	mu   sync.Mutex

	stopped atomic.Bool
	group   *errgroup.Group
	cancel  context.CancelFunc

	log *telemetry.Logger
}

// Init brings up a Dispatcher: both fiber pools, the counter pool, and
// min(runtime.NumCPU()-1, 255) (or cfg.NumWorkers, if set) persistent
// worker goroutines. It returns an error if any pool allocation fails.
func Init(cfg Config) (*Dispatcher, error) {
	if cfg.SmallPoolSize <= 0 || cfg.BigPoolSize <= 0 {
		return nil, fmt.Errorf("%w: pool sizes must be positive", ErrPoolAllocation)
	}

	d := &Dispatcher{
		cfg:    cfg,
		small:  newFiberPool(cfg.SmallPoolSize, cfg.SmallStackSize),
		big:    newFiberPool(cfg.BigPoolSize, cfg.BigStackSize),
		queues: newReadyQueues(),
		tls:    newWorkerTLS(),
		log:    telemetry.New("scheduler"),
	}
	d.cond = sync.NewCond(&d.mu)
	d.counters = newFixedPool[Counter](cfg.SmallPoolSize + cfg.BigPoolSize)
	d.sem = newSemaphore(cfg.SmallPoolSize + cfg.BigPoolSize)

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	d.group = group

	numWorkers := cfg.numWorkers()
	d.log.Info("starting dispatcher with %d workers (small=%d big=%d)", numWorkers, cfg.SmallPoolSize, cfg.BigPoolSize)
	for i := 0; i < numWorkers; i++ {
		group.Go(func() error {
			ws := &workerState{}
			return d.workerLoop(gctx, ws)
		})
	}

	return d, nil
}

// Shutdown stops and joins every worker goroutine. It does not touch the
// fiber or counter pools; they stay allocated for as long as the
// Dispatcher itself is reachable. ctx bounds how long Shutdown will wait
// for workers to notice the stop signal and return: once ctx is done,
// Shutdown returns ctx.Err() even if a hung job keeps its worker
// goroutine running. The stop flag is set and the semaphore posted
// numWorkers+1 times before joining, same as a plain unbounded join would
// do.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if !d.stopped.CompareAndSwap(false, true) {
		return ErrAlreadyShutdown
	}

	numWorkers := d.cfg.numWorkers()
	d.sem.post(numWorkers + 1)

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		if err != nil {
			d.log.Error("worker group returned error during shutdown: %v", err)
		}
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}

	d.mu.Lock()
	d.cond.Broadcast()
	d.mu.Unlock()

	d.log.Info("dispatcher shut down cleanly")
	return nil
}

// DispatchSmall submits jobs using the small-stack fiber pool.
func (d *Dispatcher) DispatchSmall(jobs []JobDesc) (Handle, error) {
	return d.dispatch(jobs, d.small)
}

// DispatchBig submits jobs using the big-stack fiber pool.
func (d *Dispatcher) DispatchBig(jobs []JobDesc) (Handle, error) {
	return d.dispatch(jobs, d.big)
}

func (d *Dispatcher) dispatch(jobs []JobDesc, pool *fiberPool) (Handle, error) {
	d.counterLock.Lock()
	counter := d.counters.acquire()
	d.counterLock.Unlock()
	if counter == nil {
		return nil, ErrCounterPoolExhausted
	}
	counter.reset()

	slots := make([]*fiberSlot, 0, len(jobs))
	for i, jd := range jobs {
		slot := pool.acquire(jd.Callback, jd.UserData, i, jd.Priority, counter)
		if slot == nil {
			d.log.Warn("fiber pool exhausted at job index %d of %d; batch will run with fewer jobs", i, len(jobs))
			continue
		}
		slots = append(slots, slot)
	}
	counter.set(len(slots))

	d.jobLock.Lock()
	for _, slot := range slots {
		d.queues.enqueue(slot)
	}
	d.jobLock.Unlock()

	d.sem.post(len(slots))

	d.mu.Lock()
	d.cond.Broadcast()
	d.mu.Unlock()

	return Handle(counter), nil
}

// Wait blocks the caller until every job in the batch identified by h has
// completed, then releases h. It may be called from the main goroutine (or
// any goroutine outside the dispatcher) or from inside a running job's own
// callback; in the latter case the calling goroutine drains other ready
// jobs (or blocks efficiently) instead of idling, and always resumes on
// the same goroutine it was called from, since no stack switch ever
// occurs.
func (d *Dispatcher) Wait(h Handle) {
	if h == nil {
		return
	}

	ws := d.tls.current()
	if ws == nil {
		ws = &workerState{}
		d.tls.bind(ws)
		defer d.tls.unbind()
	}

	nested := ws.running != nil
	if nested {
		ws.waitDepth++
		if ws.waitDepth > d.cfg.maxWaitDepth() {
			ws.waitDepth--
			d.log.Warn("nested wait depth %d exceeded; returning early with handle still live", d.cfg.maxWaitDepth())
			return
		}
		defer func() { ws.waitDepth-- }()
	}

	for h.remainingCount() > 0 {
		if slot := d.tryClaim(); slot != nil {
			d.runSlot(slot, ws)
			continue
		}
		d.blockUntilWorkOrDone(h)
	}

	if !h.released.Swap(true) {
		d.counterLock.Lock()
		d.counters.release(h)
		d.counterLock.Unlock()
	}
}

func (d *Dispatcher) tryClaim() *fiberSlot {
	d.jobLock.Lock()
	slot := d.queues.pop()
	d.jobLock.Unlock()
	return slot
}

func (d *Dispatcher) queuesEmpty() bool {
	d.jobLock.Lock()
	defer d.jobLock.Unlock()
	return d.queues.empty()
}

func (d *Dispatcher) blockUntilWorkOrDone(h *Counter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for h.remainingCount() > 0 && d.queuesEmpty() && !d.stopped.Load() {
		d.cond.Wait()
	}
}

// runSlot executes one job's callback inline on the calling goroutine,
// decrements its batch counter, and returns the slot to its owning pool.
// It is used both by the persistent worker loop and by Wait's inline
// drain, which is exactly how a single goroutine can both run unrelated
// ready jobs and resume its own suspended job without ever leaving its own
// call stack.
func (d *Dispatcher) runSlot(slot *fiberSlot, ws *workerState) {
	prev := ws.running
	ws.running = slot
	d.runCallback(slot)
	ws.running = prev

	counter := slot.counter
	pool := slot.ownerPool
	counter.dec()
	pool.release(slot)

	d.mu.Lock()
	d.cond.Broadcast()
	d.mu.Unlock()
}

func (d *Dispatcher) runCallback(slot *fiberSlot) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("job panicked (priority=%s index=%d): %v", slot.priority, slot.jobIndex, r)
		}
	}()
	slot.callback(slot.jobIndex, slot.userData)
}

// workerLoop is the persistent body of one of the dispatcher's N worker
// goroutines: it blocks on the semaphore for a posted job, claims the
// highest-priority ready one, and runs it to completion (or until the job
// itself recurses into Wait).
func (d *Dispatcher) workerLoop(ctx context.Context, ws *workerState) error {
	d.tls.bind(ws)
	defer d.tls.unbind()

	for {
		if d.stopped.Load() {
			return nil
		}
		if !d.sem.wait(ctx) {
			return nil
		}
		if d.stopped.Load() {
			return nil
		}
		if slot := d.tryClaim(); slot != nil {
			d.runSlot(slot, ws)
		}
		// A claimed-nothing wakeup means a nested Wait call elsewhere
		// already popped the job this token was posted for; loop back
		// and wait for the next one.
	}
}
