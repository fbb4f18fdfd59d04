// Package simloop provides a deterministic, virtual-time concurrency
// simulator: a bounded worker pool feeding a single-threaded cooperative
// scheduler with priority-ordered callback queues.
//
// # Architecture
//
// The simulator is built around a [Scheduler] core that owns a virtual
// [Clock], a set of callback queues, and a fixed-capacity worker pool.
// Client code submits work through [Scheduler.SubmitImmediate],
// [Scheduler.SubmitMicrotask], [Scheduler.SubmitTimer],
// [Scheduler.SubmitCheck], [Scheduler.SubmitInterval], and
// [Scheduler.SubmitWorkerJob], then calls [Scheduler.Run] to execute
// everything to completion.
//
// # Execution Model
//
// Exactly one callback executes at a time, run to completion, never
// interrupted. Each scheduler step:
//
//  1. Fully drains the immediate queue (including callbacks enqueued by
//     callbacks executed during the same drain).
//  2. Fully drains the microtask queue, same rule. If either drain left
//     work on the other queue, both drains repeat until each is observed
//     empty.
//  3. If no macrotask is ready at the current tick, advances the clock to
//     the earliest pending timer fire or worker job completion; if neither
//     exists, the run is complete.
//  4. Harvests worker pool completions into the IO phase queue and promotes
//     due timers into the timer phase queue.
//  5. Executes at most one macrotask, trying the timer, IO, and check
//     phases in that fixed order.
//
// The worker pool runs at most N jobs concurrently (in virtual time only;
// no client code ever executes in parallel), queueing overflow FIFO. With N
// workers and M > N jobs of equal duration D, completions land in batches:
// ticks D, 2D, and so on.
//
// # Determinism
//
// Time is a logical tick counter advanced only by the scheduler, never by
// the wall clock. Every queue is strict FIFO by submission order, and
// worker completions at the same tick preserve submission order, so a given
// set of submissions always produces the same execution trace. [Scheduler.Run]
// returns that trace as an ordered list of (tick, queue, callback ID)
// events.
//
// # Usage
//
//	sched, err := simloop.New(simloop.WithWorkerPoolCapacity(2))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sched.SubmitTimer(func() {
//	    fmt.Println("fires at tick 10")
//	}, 10)
//	sched.SubmitWorkerJob(5, func() {
//	    fmt.Println("job completion, IO phase, tick 5")
//	})
//
//	trace, err := sched.Run()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Types
//
// Validation failures surface synchronously ([ErrInvalidDuration],
// [ErrInvalidTime], [ErrInvalidQueue], [ErrInvalidConfig], [ErrNotFound],
// [ErrAlreadyRunning]). A queue that never drains within the configured
// guard aborts the run with [LivelockError], returning the partial trace.
// Panics inside callbacks are recovered, wrapped in [UncaughtError], and
// reported via the [WithUncaughtHandler] hook; they never abort the run.
//
// The Scheduler is not safe for concurrent use: the cooperative,
// single-threaded model is the point, and it is what makes the simulator
// lock-free and deterministic.
package simloop
