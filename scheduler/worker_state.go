package scheduler

// MaxWaitDepth bounds how many nested Wait calls a single goroutine may
// make before a recursive call is refused: nesting this deep signals a
// programming error in the job graph rather than a resource the
// dispatcher should keep growing.
const MaxWaitDepth = 32

// workerState is per-goroutine state. Wait has no parameter slot to
// receive it explicitly: the public Wait(h Handle) signature and the
// JobFunc callback ABI are both fixed, so it is looked up through
// workerTLS, a goroutine-id-keyed registry bound for the lifetime of a
// worker loop or an external Wait call (see tls.go). running is non-nil
// only while this goroutine is executing a job's callback. waitDepth
// counts nested Wait recursions made from inside that callback.
type workerState struct {
	running   *fiberSlot
	waitDepth int
}
