// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

import (
	"container/heap"
	"errors"

	"github.com/joeycumines/logiface"
)

// Scheduler is the cooperative, single-threaded driver of the simulation.
//
// It exclusively owns the virtual clock, the callback queues, and the
// worker pool; the only way to mutate any of them is through the submission
// and cancellation API. Exactly one callback executes at a time, run to
// completion. Because nothing runs concurrently with client code, no locks
// are required anywhere, and cancellation is always race-free.
//
// A Scheduler is reusable: after a run reaches the terminal idle state,
// further submissions and another [Scheduler.Run] are permitted. The clock
// keeps its value between runs; the trace is per run.
//
// Scheduler is NOT safe for use from multiple goroutines.
type Scheduler struct {
	clock   *Clock
	queues  *queueSet
	pool    *workerPool
	metrics *metricsState
	logger  *logiface.Logger[logiface.Event]

	onUncaught UncaughtHandler

	// timers holds timer callbacks that are not yet due, ordered by
	// (fireTime, submission order). Due entries are promoted onto the timer
	// phase queue each step.
	timers timerHeap

	trace Trace

	lastID        uint64
	livelockGuard int
	state         State
}

// New creates a scheduler with a fresh clock, empty queues, and an idle
// worker pool.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	clock := NewClock()
	s := &Scheduler{
		clock:         clock,
		queues:        newQueueSet(),
		pool:          newWorkerPool(cfg.capacity, clock),
		logger:        cfg.logger,
		onUncaught:    cfg.onUncaught,
		livelockGuard: cfg.livelockGuard,
	}
	if cfg.metricsEnabled {
		s.metrics = &metricsState{}
	}
	s.pool.complete = s.jobCompleted

	return s, nil
}

// Now returns the current virtual tick.
func (s *Scheduler) Now() Tick {
	return s.clock.Now()
}

// State returns the current run-loop state.
func (s *Scheduler) State() State {
	return s.state
}

// Configure adjusts runtime settings before a run starts. Zero-valued
// fields are left unchanged. Fails with [ErrAlreadyRunning] mid-run, and
// with [ErrInvalidConfig] for out-of-range values, including shrinking the
// pool below the number of currently occupied worker slots.
func (s *Scheduler) Configure(cfg Config) error {
	if s.state != StateIdle {
		return ErrAlreadyRunning
	}
	if cfg.WorkerPoolCapacity < 0 || cfg.LivelockGuard < 0 {
		return ErrInvalidConfig
	}
	if cfg.WorkerPoolCapacity > 0 {
		if cfg.WorkerPoolCapacity < len(s.pool.running) {
			return ErrInvalidConfig
		}
		s.pool.capacity = cfg.WorkerPoolCapacity
	}
	if cfg.LivelockGuard > 0 {
		s.livelockGuard = cfg.LivelockGuard
	}
	return nil
}

// nextID allocates a unique, strictly increasing identifier. A single
// counter serves callbacks, jobs, and intervals, so IDs double as the FIFO
// submission-order tie-break.
func (s *Scheduler) nextID() uint64 {
	s.lastID++
	return s.lastID
}

func (s *Scheduler) newCallback(fn CallbackFunc) *callback {
	return &callback{fn: fn, id: s.nextID()}
}

// submit enqueues the callback and tracks peak depth for metrics.
func (s *Scheduler) submit(name QueueName, cb *callback) error {
	if err := s.queues.enqueue(name, cb); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.observeDepth(name, s.queues.size(name))
	}
	return nil
}

// SubmitImmediate schedules a callback on the highest-priority queue,
// drained fully before microtasks and macrotasks every step. A nil fn is a
// no-op and returns a nil handle.
func (s *Scheduler) SubmitImmediate(fn CallbackFunc) (*CallbackHandle, error) {
	if fn == nil {
		return nil, nil
	}
	cb := s.newCallback(fn)
	if err := s.submit(QueueImmediate, cb); err != nil {
		return nil, err
	}
	return &CallbackHandle{cb: cb}, nil
}

// SubmitMicrotask schedules a callback on the microtask queue, drained
// fully after immediates and before any macrotask phase. A microtask
// scheduled from within another microtask runs in the same drain.
func (s *Scheduler) SubmitMicrotask(fn CallbackFunc) (*CallbackHandle, error) {
	if fn == nil {
		return nil, nil
	}
	cb := s.newCallback(fn)
	if err := s.submit(QueueMicrotask, cb); err != nil {
		return nil, err
	}
	return &CallbackHandle{cb: cb}, nil
}

// SubmitTimer schedules a callback to fire once the clock reaches the
// submission tick plus delay. A delay of zero is valid: the callback still
// runs asynchronously, after all pending immediates and microtasks.
func (s *Scheduler) SubmitTimer(fn CallbackFunc, delay Tick) (*CallbackHandle, error) {
	if fn == nil {
		return nil, nil
	}
	cb := s.newCallback(fn)
	cb.queue = QueueTimer
	cb.fireAt = s.clock.Now() + delay
	heap.Push(&s.timers, cb)
	return &CallbackHandle{cb: cb}, nil
}

// SubmitCheck schedules a callback on the check phase queue, served after
// the timer and IO phases in the macrotask rotation.
func (s *Scheduler) SubmitCheck(fn CallbackFunc) (*CallbackHandle, error) {
	if fn == nil {
		return nil, nil
	}
	cb := s.newCallback(fn)
	if err := s.submit(QueueCheck, cb); err != nil {
		return nil, err
	}
	return &CallbackHandle{cb: cb}, nil
}

// SubmitWorkerJob submits a CPU-bound job to the worker pool. The job
// occupies a worker slot for duration ticks (queueing FIFO while the pool
// is saturated), then fn is enqueued onto the IO phase queue as the job's
// completion callback. Duration must be positive; zero fails with
// [ErrInvalidDuration].
func (s *Scheduler) SubmitWorkerJob(duration Tick, fn CallbackFunc) (*JobHandle, error) {
	if fn == nil {
		return nil, nil
	}
	if duration == 0 {
		return nil, ErrInvalidDuration
	}
	j := &job{fn: fn, id: s.nextID(), duration: duration}
	s.pool.submit(j)
	if s.metrics != nil {
		s.metrics.jobsSubmitted++
	}
	return &JobHandle{j: j}, nil
}

// Cancel cancels the work referenced by the handle. Cancellation is
// synchronous and race-free. It fails with [ErrNotFound] if the handle has
// already executed, completed, or been cancelled. Cancelling a running
// worker job suppresses its completion callback but does not free the
// worker slot early.
func (s *Scheduler) Cancel(h Handle) error {
	if h == nil {
		return ErrNotFound
	}
	return h.cancel(s)
}

// jobCompleted routes a finished job's callback onto the IO phase queue.
// The callback is a fresh entity with its own ID; the job itself is gone
// from the pool by the time this runs.
func (s *Scheduler) jobCompleted(j *job) {
	cb := s.newCallback(j.fn)
	_ = s.submit(QueueIO, cb)
	if s.metrics != nil {
		s.metrics.jobsCompleted++
	}
}

// Run executes the simulation until the terminal idle state: all queues
// empty, no pending timers, and the worker pool drained. It returns the
// ordered execution trace.
//
// Run only fails for [LivelockError] (returning the partial trace
// alongside the error) and for [ErrAlreadyRunning] when called mid-run,
// e.g. from inside a callback. Panics inside callbacks never propagate out
// of Run.
func (s *Scheduler) Run() (Trace, error) {
	if s.state != StateIdle {
		return nil, ErrAlreadyRunning
	}
	s.state = StateRunning
	defer func() { s.state = StateIdle }()

	s.trace = nil

	s.logger.Debug().
		Int("capacity", s.pool.capacity).
		Int("livelock_guard", s.livelockGuard).
		Uint64("tick", uint64(s.clock.Now())).
		Log("run starting")

	for {
		done, err := s.step()
		if err != nil {
			var livelock *LivelockError
			if errors.As(err, &livelock) {
				s.logger.Warning().
					Str("queue", livelock.Queue.String()).
					Int("iterations", livelock.Iterations).
					Log("aborting run: queue never drained")
			}
			return s.snapshotTrace(), err
		}
		if done {
			break
		}
	}

	s.logger.Debug().
		Int("events", len(s.trace)).
		Uint64("tick", uint64(s.clock.Now())).
		Log("run complete")

	return s.snapshotTrace(), nil
}

// Step executes a single scheduler iteration: both priority drains,
// possibly one clock advance, and at most one macrotask. It returns true
// once the terminal state is reached. Step exists for debugging and tests;
// [Scheduler.Run] is the normal entry point. Unlike Run, Step does not
// reset the accumulated trace, which remains readable via
// [Scheduler.Trace].
func (s *Scheduler) Step() (done bool, err error) {
	if s.state != StateIdle {
		return false, ErrAlreadyRunning
	}
	s.state = StateRunning
	defer func() { s.state = StateIdle }()
	return s.step()
}

// Trace returns a copy of the execution trace accumulated so far. Run
// resets it; Step accumulates across calls.
func (s *Scheduler) Trace() Trace {
	return s.snapshotTrace()
}

func (s *Scheduler) snapshotTrace() Trace {
	return append(Trace(nil), s.trace...)
}

// step is one iteration of the run loop.
func (s *Scheduler) step() (bool, error) {
	if err := s.drainPriority(); err != nil {
		return false, err
	}

	if !s.queues.macroReady() {
		// Nothing runnable at the current tick. Jump to the next
		// interesting tick, or finish if there is none.
		nextTimer, haveTimer := s.nextTimerFire()
		nextJob, haveJob := s.pool.nextCompletion()
		if !haveTimer && !haveJob {
			s.state = StateDraining
			if s.queues.pendingAny() {
				return true, ErrDeadlock
			}
			return true, nil
		}

		target := nextTimer
		if !haveTimer || (haveJob && nextJob < target) {
			target = nextJob
		}
		if target > s.clock.Now() {
			if err := s.clock.AdvanceTo(target); err != nil {
				return false, err
			}
			if s.metrics != nil {
				s.metrics.clockAdvances++
			}
			s.logger.Trace().Uint64("tick", uint64(target)).Log("clock advanced")
		}
	}

	s.pool.tick(s.clock.Now())
	s.promoteTimers()

	for _, name := range macroOrder {
		if cb := s.queues.popOne(name); cb != nil {
			s.execute(cb)
			break
		}
	}
	return false, nil
}

// drainPriority fully empties the immediate queue and then the microtask
// queue, re-running both whenever executing one queue left work on the
// other, so the terminal/advance decision and the macrotask rotation only
// ever see both empty. One guard budget spans all re-drains; on livelock the
// reported iteration count is the total executed across them.
func (s *Scheduler) drainPriority() error {
	var executed int
	drain := func(name QueueName) error {
		n, err := s.queues.drainAll(name, s.livelockGuard-executed, s.execute)
		executed += n
		var livelock *LivelockError
		if errors.As(err, &livelock) {
			livelock.Iterations = executed
		}
		return err
	}
	for {
		if err := drain(QueueImmediate); err != nil {
			return err
		}
		if err := drain(QueueMicrotask); err != nil {
			return err
		}
		if s.queues.size(QueueImmediate) == 0 && s.queues.size(QueueMicrotask) == 0 {
			return nil
		}
	}
}

// nextTimerFire peeks the earliest pending timer fire tick, discarding
// cancelled entries from the top of the heap as it goes.
func (s *Scheduler) nextTimerFire() (Tick, bool) {
	for len(s.timers) > 0 {
		top := s.timers[0]
		if top.done {
			heap.Pop(&s.timers)
			continue
		}
		return top.fireAt, true
	}
	return 0, false
}

// promoteTimers moves every due timer callback onto the timer phase queue,
// ordered by (fireTime, submission order) courtesy of the heap.
func (s *Scheduler) promoteTimers() {
	now := s.clock.Now()
	for len(s.timers) > 0 {
		top := s.timers[0]
		if top.done {
			heap.Pop(&s.timers)
			continue
		}
		if top.fireAt > now {
			break
		}
		heap.Pop(&s.timers)
		_ = s.submit(QueueTimer, top)
	}
}

// execute dispatches one callback with panic recovery. The trace entry is
// recorded at dispatch, so a panicking callback still shows up as having
// run.
func (s *Scheduler) execute(cb *callback) {
	cb.done = true
	s.trace = append(s.trace, TraceEvent{
		Tick:       s.clock.Now(),
		Queue:      cb.queue,
		CallbackID: cb.id,
	})
	if s.metrics != nil {
		s.metrics.executed[cb.queue]++
	}

	defer func() {
		if r := recover(); r != nil {
			err := &UncaughtError{Value: r, CallbackID: cb.id}
			if s.metrics != nil {
				s.metrics.uncaughtPanics++
			}
			s.logger.Err().
				Err(err).
				Uint64("callback", cb.id).
				Str("queue", cb.queue.String()).
				Log("callback panicked")
			if s.onUncaught != nil {
				s.onUncaught(err, cb.id)
			}
		}
	}()

	cb.fn()
}

// timerHeap is a min-heap of pending timer callbacks ordered by fire tick,
// with submission order (the ID) breaking ties.
type timerHeap []*callback

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].fireAt != h[j].fireAt {
		return h[i].fireAt < h[j].fireAt
	}
	return h[i].id < h[j].id
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*callback))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}
