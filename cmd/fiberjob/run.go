package main

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"fiberjob/scheduler"
)

var runFlags struct {
	jobs     int
	kind     string
	priority string
	workers  int
	big      bool
	sleep    time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch a batch of synthetic jobs and print a summary",
	Long: `run submits --jobs synthetic callbacks to a fresh Dispatcher, waits for
the whole batch to complete, and prints how long that took. Unlike the
fiber library this project is modeled on, run performs one batch and exits;
it does not loop forever.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runFlags.jobs, "jobs", 64, "number of jobs to dispatch")
	runCmd.Flags().StringVar(&runFlags.kind, "kind", "cpu", "job kind: cpu or sleep")
	runCmd.Flags().StringVar(&runFlags.priority, "priority", "normal", "job priority: high, normal, or low")
	runCmd.Flags().IntVar(&runFlags.workers, "workers", 0, "worker goroutine count (0 = auto)")
	runCmd.Flags().BoolVar(&runFlags.big, "big", false, "dispatch via the big-stack pool instead of small")
	runCmd.Flags().DurationVar(&runFlags.sleep, "sleep", 2*time.Millisecond, "per-job sleep duration when --kind=sleep")
}

func parsePriority(s string) (scheduler.Priority, error) {
	switch s {
	case "high":
		return scheduler.High, nil
	case "normal":
		return scheduler.Normal, nil
	case "low":
		return scheduler.Low, nil
	default:
		return scheduler.Normal, fmt.Errorf("unknown priority %q (want high, normal, or low)", s)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	priority, err := parsePriority(runFlags.priority)
	if err != nil {
		return err
	}
	if runFlags.jobs <= 0 {
		return fmt.Errorf("--jobs must be positive, got %d", runFlags.jobs)
	}

	cfg := scheduler.DefaultConfig()
	if runFlags.workers > 0 {
		cfg.NumWorkers = runFlags.workers
	}

	d, err := scheduler.Init(cfg)
	if err != nil {
		return fmt.Errorf("initializing dispatcher: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	}()

	var completed int64
	work := func(jobIndex int, userData any) {
		switch runFlags.kind {
		case "sleep":
			time.Sleep(runFlags.sleep)
		default:
			busyWork()
		}
		atomic.AddInt64(&completed, 1)
	}

	jobs := make([]scheduler.JobDesc, runFlags.jobs)
	for i := range jobs {
		jobs[i] = scheduler.JobDesc{Callback: work, Priority: priority}
	}

	dispatchFn := d.DispatchSmall
	if runFlags.big {
		dispatchFn = d.DispatchBig
	}

	start := time.Now()
	handle, err := dispatchFn(jobs)
	if err != nil {
		return fmt.Errorf("dispatching batch: %w", err)
	}
	d.Wait(handle)
	elapsed := time.Since(start)

	fmt.Printf("dispatched %d jobs (%s priority, %s pool, kind=%s)\n",
		runFlags.jobs, runFlags.priority, poolName(runFlags.big), runFlags.kind)
	fmt.Printf("completed  %d\n", atomic.LoadInt64(&completed))
	fmt.Printf("elapsed    %s\n", elapsed)
	return nil
}

func poolName(big bool) string {
	if big {
		return "big"
	}
	return "small"
}

// busyWork spends a small, deterministic amount of CPU so --kind=cpu jobs
// have something to measure beyond scheduling overhead.
func busyWork() {
	x := 0.0001
	for i := 0; i < 20000; i++ {
		x = math.Sqrt(x + 1.0)
	}
	if x < 0 {
		panic("unreachable")
	}
}
