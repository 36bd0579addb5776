package scheduler

import "sync/atomic"

// Counter is a batch's completion counter: created with a value equal to
// the number of fibers successfully allocated for the batch, decremented
// once per completed job, and observed by Wait to reach zero. Its pointer
// identity is the job handle returned from DispatchSmall/DispatchBig.
// Wait observes remainingCount reaching zero by polling it under the
// dispatcher's sync.Cond, woken on every job completion and every new
// enqueue; Counter itself carries no channel or wakeup primitive of its
// own.
//
// A Handle is single-consumer. Calling Wait on the same Counter from two
// different callers is not a supported pattern: whichever caller observes
// zero first releases the counter back to its pool.
type Counter struct {
	remaining int32

	// released guards the return-to-pool step so two callers racing a
	// Wait call on the same handle can't both push this Counter onto the
	// free list. It doesn't turn concurrent Wait on one handle into a
	// supported pattern, it just keeps the pool's free list from
	// corrupting when that happens anyway.
	released atomic.Bool
}

// Handle is the opaque token returned by a dispatch call and consumed by
// Wait. It is valid from dispatch until the matching Wait returns; using it
// again afterward is undefined.
type Handle = *Counter

func (c *Counter) set(n int) {
	atomic.StoreInt32(&c.remaining, int32(n))
}

// dec decrements the counter by one.
func (c *Counter) dec() {
	atomic.AddInt32(&c.remaining, -1)
}

func (c *Counter) remainingCount() int32 {
	return atomic.LoadInt32(&c.remaining)
}

func (c *Counter) reset() {
	c.remaining = 0
	c.released.Store(false)
}
