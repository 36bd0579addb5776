package scheduler

import "errors"

// ErrCounterPoolExhausted is returned by DispatchSmall/DispatchBig when
// the dispatcher's counter pool has no free slots left. The batch is
// entirely rejected in this case, unlike fiber-pool exhaustion, which
// silently shrinks the batch, there is no handle to return at all.
var ErrCounterPoolExhausted = errors.New("scheduler: counter pool exhausted")

// ErrAlreadyShutdown is returned by Shutdown if called more than once.
var ErrAlreadyShutdown = errors.New("scheduler: dispatcher already shut down")

// ErrPoolAllocation is returned by Init if a fiber or counter pool could
// not be created.
var ErrPoolAllocation = errors.New("scheduler: pool allocation failed")
