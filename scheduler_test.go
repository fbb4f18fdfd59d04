// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_ImmediateMicrotaskTimerOrder verifies the headline priority law:
// one immediate A, one microtask B, and one zero-delay timer C execute in
// exactly that order.
func TestRun_ImmediateMicrotaskTimerOrder(t *testing.T) {
	s := mustScheduler(t)

	var order []string
	_, err := s.SubmitImmediate(func() { order = append(order, "A") })
	require.NoError(t, err)
	_, err = s.SubmitMicrotask(func() { order = append(order, "B") })
	require.NoError(t, err)
	_, err = s.SubmitTimer(func() { order = append(order, "C") }, 0)
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, order)
	require.Len(t, trace, 3)
	assert.Equal(t, QueueImmediate, trace[0].Queue)
	assert.Equal(t, QueueMicrotask, trace[1].Queue)
	assert.Equal(t, QueueTimer, trace[2].Queue)
	for _, e := range trace {
		assert.Equal(t, Tick(0), e.Tick, "zero-delay work all runs at tick 0")
	}
}

// TestRun_MicrotasksBeforeTimers verifies that every microtask executes
// before any timer callback, regardless of delay values, even delay 0.
func TestRun_MicrotasksBeforeTimers(t *testing.T) {
	s := mustScheduler(t)

	const microtasks, timers = 5, 4
	var order []string
	for i := 0; i < timers; i++ {
		_, err := s.SubmitTimer(func() { order = append(order, "timer") }, Tick(i%2))
		require.NoError(t, err)
	}
	for i := 0; i < microtasks; i++ {
		_, err := s.SubmitMicrotask(func() { order = append(order, "micro") })
		require.NoError(t, err)
	}

	_, err := s.Run()
	require.NoError(t, err)

	require.Len(t, order, microtasks+timers)
	for i, kind := range order {
		if i < microtasks {
			assert.Equal(t, "micro", kind, "index %d", i)
		} else {
			assert.Equal(t, "timer", kind, "index %d", i)
		}
	}
}

// TestRun_FIFOWithinQueue verifies strict submission-order execution within
// a single queue.
func TestRun_FIFOWithinQueue(t *testing.T) {
	for _, tc := range []struct {
		name   string
		submit func(s *Scheduler, fn CallbackFunc) error
	}{
		{"immediate", func(s *Scheduler, fn CallbackFunc) error {
			_, err := s.SubmitImmediate(fn)
			return err
		}},
		{"microtask", func(s *Scheduler, fn CallbackFunc) error {
			_, err := s.SubmitMicrotask(fn)
			return err
		}},
		{"check", func(s *Scheduler, fn CallbackFunc) error {
			_, err := s.SubmitCheck(fn)
			return err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := mustScheduler(t)
			var order []int
			for i := 0; i < 10; i++ {
				i := i
				require.NoError(t, tc.submit(s, func() { order = append(order, i) }))
			}
			_, err := s.Run()
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
		})
	}
}

// TestRun_MacrotaskRotationFairness verifies that with one callback pending
// in each macrotask phase at the same tick, they fire Timer, then IO, then
// Check, with the microtask queue re-drained between each.
func TestRun_MacrotaskRotationFairness(t *testing.T) {
	s := mustScheduler(t)

	var order []string
	_, err := s.SubmitWorkerJob(5, func() { order = append(order, "io") })
	require.NoError(t, err)
	_, err = s.SubmitTimer(func() {
		order = append(order, "timer")
		// Both land before the IO and check callbacks already pending at
		// this tick: the microtask because priority drains re-run between
		// macrotasks, the check callback after IO by rotation order.
		if _, err := s.SubmitMicrotask(func() { order = append(order, "micro") }); err != nil {
			t.Errorf("SubmitMicrotask failed: %v", err)
		}
		if _, err := s.SubmitCheck(func() { order = append(order, "check") }); err != nil {
			t.Errorf("SubmitCheck failed: %v", err)
		}
	}, 5)
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"timer", "micro", "io", "check"}, order)
	for _, e := range trace {
		assert.Equal(t, Tick(5), e.Tick)
	}
}

// TestRun_EmptySimulationTerminates verifies a run with no submissions
// reaches the terminal state immediately with an empty trace.
func TestRun_EmptySimulationTerminates(t *testing.T) {
	s := mustScheduler(t)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.Empty(t, trace)
	assert.Equal(t, Tick(0), s.Now(), "clock must not advance with no work")
	assert.Equal(t, StateIdle, s.State())
}

// TestRun_TimerOrderingByFireTimeThenSubmission verifies due timers promote
// ordered by (fireTime, submission order).
func TestRun_TimerOrderingByFireTimeThenSubmission(t *testing.T) {
	s := mustScheduler(t)

	var order []string
	h1, err := s.SubmitTimer(func() { order = append(order, "t1") }, 5)
	require.NoError(t, err)
	h2, err := s.SubmitTimer(func() { order = append(order, "t2") }, 2)
	require.NoError(t, err)
	h3, err := s.SubmitTimer(func() { order = append(order, "t3") }, 5)
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"t2", "t1", "t3"}, order)
	require.Len(t, trace, 3)
	assert.Equal(t, []Tick{2, 5, 5}, trace.Ticks())
	assert.Equal(t, []uint64{h2.ID(), h1.ID(), h3.ID()}, trace.IDs())
}

// TestRun_NestedSubmissions verifies callbacks created while executing are
// appended to the current tick's view of the relevant queue: nested
// immediates and microtasks run in the same drain, nested timers defer to
// their fire tick.
func TestRun_NestedSubmissions(t *testing.T) {
	s := mustScheduler(t)

	var order []string
	_, err := s.SubmitImmediate(func() {
		order = append(order, "imm1")
		s.SubmitImmediate(func() { order = append(order, "imm2-nested") })
	})
	require.NoError(t, err)
	_, err = s.SubmitMicrotask(func() {
		order = append(order, "micro1")
		s.SubmitMicrotask(func() { order = append(order, "micro2-nested") })
		s.SubmitTimer(func() { order = append(order, "timer-nested") }, 3)
	})
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{"imm1", "imm2-nested", "micro1", "micro2-nested", "timer-nested"}, order)
	assert.Equal(t, Tick(3), trace[len(trace)-1].Tick)
}

// TestRun_ImmediateFromMicrotask verifies an immediate enqueued while the
// microtask queue drains is picked up by a re-drain: it runs before any
// clock advance or macrotask, and on its own it is enough work to complete
// the run normally.
func TestRun_ImmediateFromMicrotask(t *testing.T) {
	t.Run("terminal", func(t *testing.T) {
		s := mustScheduler(t)

		var order []string
		_, err := s.SubmitMicrotask(func() {
			order = append(order, "micro")
			s.SubmitImmediate(func() { order = append(order, "imm") })
		})
		require.NoError(t, err)

		trace, err := s.Run()
		require.NoError(t, err)

		assert.Equal(t, []string{"micro", "imm"}, order)
		require.Len(t, trace, 2)
		assert.Equal(t, QueueImmediate, trace[1].Queue)
	})

	t.Run("pending timer", func(t *testing.T) {
		s := mustScheduler(t)

		var order []string
		_, err := s.SubmitTimer(func() { order = append(order, "timer") }, 5)
		require.NoError(t, err)
		_, err = s.SubmitMicrotask(func() {
			order = append(order, "micro")
			s.SubmitImmediate(func() { order = append(order, "imm") })
		})
		require.NoError(t, err)

		trace, err := s.Run()
		require.NoError(t, err)

		assert.Equal(t, []string{"micro", "imm", "timer"}, order)
		assert.Equal(t, []Tick{0, 0, 5}, trace.Ticks(), "the immediate runs before the clock moves")
	})
}

// TestRun_LivelockGuardSpansPriorityDrains verifies two callbacks endlessly
// resubmitting each other across the immediate and microtask queues trip the
// guard as a whole, not per drain.
func TestRun_LivelockGuardSpansPriorityDrains(t *testing.T) {
	const guard = 10
	s := mustScheduler(t, WithLivelockGuard(guard))

	var micro, immediate CallbackFunc
	micro = func() {
		if _, err := s.SubmitImmediate(immediate); err != nil {
			t.Errorf("SubmitImmediate failed: %v", err)
		}
	}
	immediate = func() {
		if _, err := s.SubmitMicrotask(micro); err != nil {
			t.Errorf("SubmitMicrotask failed: %v", err)
		}
	}
	_, err := s.SubmitMicrotask(micro)
	require.NoError(t, err)

	trace, err := s.Run()

	var livelock *LivelockError
	require.ErrorAs(t, err, &livelock)
	assert.Equal(t, guard, livelock.Iterations)
	assert.Len(t, trace, guard)
}

// TestRun_UncaughtPanicDoesNotAbortRun verifies panic isolation: the
// panicking callback is reported via the hook and the loop continues.
func TestRun_UncaughtPanicDoesNotAbortRun(t *testing.T) {
	sentinel := errors.New("boom")

	var (
		hookErr error
		hookID  uint64
	)
	s := mustScheduler(t, WithUncaughtHandler(func(err error, callbackID uint64) {
		hookErr = err
		hookID = callbackID
	}))

	var order []string
	bad, err := s.SubmitImmediate(func() {
		order = append(order, "bad")
		panic(sentinel)
	})
	require.NoError(t, err)
	_, err = s.SubmitMicrotask(func() { order = append(order, "survivor") })
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err, "panics must not propagate out of Run")

	assert.Equal(t, []string{"bad", "survivor"}, order)
	assert.Len(t, trace, 2, "the panicking callback still appears in the trace")

	require.Error(t, hookErr)
	assert.Equal(t, bad.ID(), hookID)
	var uncaught *UncaughtError
	require.ErrorAs(t, hookErr, &uncaught)
	assert.Equal(t, bad.ID(), uncaught.CallbackID)
	assert.ErrorIs(t, hookErr, sentinel, "panic values that are errors unwrap")
}

// TestRun_LivelockReturnsPartialTrace verifies a microtask that resubmits
// itself forever aborts the run with LivelockError plus the partial trace.
func TestRun_LivelockReturnsPartialTrace(t *testing.T) {
	const guard = 10
	s := mustScheduler(t, WithLivelockGuard(guard))

	var resubmit CallbackFunc
	resubmit = func() {
		if _, err := s.SubmitMicrotask(resubmit); err != nil {
			t.Errorf("SubmitMicrotask failed: %v", err)
		}
	}
	_, err := s.SubmitMicrotask(resubmit)
	require.NoError(t, err)

	trace, err := s.Run()

	var livelock *LivelockError
	require.ErrorAs(t, err, &livelock)
	assert.Equal(t, QueueMicrotask, livelock.Queue)
	assert.Equal(t, guard, livelock.Iterations)
	assert.Len(t, trace, guard, "partial trace covers everything that ran")
	assert.Equal(t, StateIdle, s.State(), "scheduler returns to idle after abort")
}

// TestRun_ReentrantRunRejected verifies calling Run from inside a callback
// fails with ErrAlreadyRunning.
func TestRun_ReentrantRunRejected(t *testing.T) {
	s := mustScheduler(t)

	var reentrant error
	_, err := s.SubmitImmediate(func() {
		_, reentrant = s.Run()
	})
	require.NoError(t, err)

	_, err = s.Run()
	require.NoError(t, err)
	assert.ErrorIs(t, reentrant, ErrAlreadyRunning)
}

// TestRun_SecondRunReusesScheduler verifies the scheduler is reusable after
// reaching the terminal state, with the clock carried forward.
func TestRun_SecondRunReusesScheduler(t *testing.T) {
	s := mustScheduler(t)

	_, err := s.SubmitTimer(func() {}, 3)
	require.NoError(t, err)
	trace, err := s.Run()
	require.NoError(t, err)
	require.Len(t, trace, 1)
	assert.Equal(t, Tick(3), s.Now())

	_, err = s.SubmitTimer(func() {}, 2)
	require.NoError(t, err)
	trace, err = s.Run()
	require.NoError(t, err)
	require.Len(t, trace, 1, "trace is per run, not cumulative")
	assert.Equal(t, Tick(5), trace[0].Tick, "delays are relative to the carried-forward clock")
}

// TestCancel_CallbackBeforeRun verifies a cancelled callback never appears
// in the trace, and that cancelling twice fails with ErrNotFound.
func TestCancel_CallbackBeforeRun(t *testing.T) {
	for _, tc := range []struct {
		name   string
		submit func(s *Scheduler) (*CallbackHandle, error)
	}{
		{"immediate", func(s *Scheduler) (*CallbackHandle, error) {
			return s.SubmitImmediate(func() {})
		}},
		{"microtask", func(s *Scheduler) (*CallbackHandle, error) {
			return s.SubmitMicrotask(func() {})
		}},
		{"pending timer", func(s *Scheduler) (*CallbackHandle, error) {
			return s.SubmitTimer(func() {}, 5)
		}},
		{"check", func(s *Scheduler) (*CallbackHandle, error) {
			return s.SubmitCheck(func() {})
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := mustScheduler(t)
			h, err := tc.submit(s)
			require.NoError(t, err)

			require.NoError(t, s.Cancel(h))
			assert.ErrorIs(t, s.Cancel(h), ErrNotFound, "second cancel")

			trace, err := s.Run()
			require.NoError(t, err)
			assert.Empty(t, trace)
		})
	}
}

// TestCancel_AfterExecution verifies cancelling an already-executed
// callback fails with ErrNotFound.
func TestCancel_AfterExecution(t *testing.T) {
	s := mustScheduler(t)

	h, err := s.SubmitImmediate(func() {})
	require.NoError(t, err)
	_, err = s.Run()
	require.NoError(t, err)

	assert.ErrorIs(t, s.Cancel(h), ErrNotFound)
}

// TestCancel_NilHandle covers the nil guard.
func TestCancel_NilHandle(t *testing.T) {
	s := mustScheduler(t)
	assert.ErrorIs(t, s.Cancel(nil), ErrNotFound)
}

// TestCancel_PromotedTimer verifies a timer cancelled from a callback at
// its own fire tick, after promotion to the timer phase queue, is removed
// from the queue and never runs.
func TestCancel_PromotedTimer(t *testing.T) {
	s := mustScheduler(t)

	var fired bool
	var victim *CallbackHandle
	// Both timers come due at tick 1. The first to run (FIFO) cancels the
	// second, which by then sits promoted in the timer phase queue.
	_, err := s.SubmitTimer(func() {
		if err := s.Cancel(victim); err != nil {
			t.Errorf("Cancel failed: %v", err)
		}
	}, 1)
	require.NoError(t, err)
	victim, err = s.SubmitTimer(func() { fired = true }, 1)
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.False(t, fired)
	assert.Len(t, trace, 1)
}

// TestConfigure_MidRunRejected verifies Configure fails with
// ErrAlreadyRunning when called from inside a callback.
func TestConfigure_MidRunRejected(t *testing.T) {
	s := mustScheduler(t)

	var configureErr error
	_, err := s.SubmitImmediate(func() {
		configureErr = s.Configure(Config{WorkerPoolCapacity: 8})
	})
	require.NoError(t, err)

	_, err = s.Run()
	require.NoError(t, err)
	assert.ErrorIs(t, configureErr, ErrAlreadyRunning)
}

// TestConfigure_Validation covers rejected configuration values.
func TestConfigure_Validation(t *testing.T) {
	s := mustScheduler(t)

	assert.ErrorIs(t, s.Configure(Config{WorkerPoolCapacity: -1}), ErrInvalidConfig)
	assert.ErrorIs(t, s.Configure(Config{LivelockGuard: -1}), ErrInvalidConfig)

	// Shrinking below occupied slots is rejected.
	for i := 0; i < 4; i++ {
		_, err := s.SubmitWorkerJob(1, func() {})
		require.NoError(t, err)
	}
	assert.ErrorIs(t, s.Configure(Config{WorkerPoolCapacity: 2}), ErrInvalidConfig)

	// Zero values leave settings unchanged.
	require.NoError(t, s.Configure(Config{}))
	require.NoError(t, s.Configure(Config{LivelockGuard: 50}))
	assert.Equal(t, 50, s.livelockGuard)
	assert.Equal(t, DefaultWorkerPoolCapacity, s.pool.capacity)
}

// TestStep_SingleIteration verifies Step executes one loop iteration at a
// time and accumulates the trace across calls.
func TestStep_SingleIteration(t *testing.T) {
	s := mustScheduler(t)

	var order []string
	_, err := s.SubmitImmediate(func() { order = append(order, "imm") })
	require.NoError(t, err)
	_, err = s.SubmitTimer(func() { order = append(order, "timer") }, 1)
	require.NoError(t, err)
	_, err = s.SubmitTimer(func() { order = append(order, "timer2") }, 2)
	require.NoError(t, err)

	// Step 1: drains the immediate, advances to tick 1, runs the first timer.
	done, err := s.Step()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []string{"imm", "timer"}, order)
	assert.Equal(t, Tick(1), s.Now())

	// Step 2: advances to tick 2, runs the second timer.
	done, err = s.Step()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, Tick(2), s.Now())

	// Step 3: nothing left.
	done, err = s.Step()
	require.NoError(t, err)
	assert.True(t, done)

	assert.Len(t, s.Trace(), 3, "Step accumulates the trace")
}

// TestRun_TraceTicksMatchVirtualTime verifies trace events carry the tick
// at which the callback actually ran.
func TestRun_TraceTicksMatchVirtualTime(t *testing.T) {
	s := mustScheduler(t)

	ticks := map[string]Tick{}
	_, err := s.SubmitTimer(func() {
		ticks["t7"] = s.Now()
		// A job submitted mid-run completes relative to the current tick.
		s.SubmitWorkerJob(3, func() { ticks["job"] = s.Now() })
	}, 7)
	require.NoError(t, err)

	trace, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, Tick(7), ticks["t7"])
	assert.Equal(t, Tick(10), ticks["job"])
	require.Len(t, trace, 2)
	assert.Equal(t, Tick(7), trace[0].Tick)
	assert.Equal(t, Tick(10), trace[1].Tick)
	assert.Equal(t, QueueIO, trace[1].Queue)
}

// TestSubmit_NilCallbacksAreNoOps mirrors the convention that a nil fn is
// accepted and does nothing.
func TestSubmit_NilCallbacksAreNoOps(t *testing.T) {
	s := mustScheduler(t)

	h1, err := s.SubmitImmediate(nil)
	require.NoError(t, err)
	assert.Nil(t, h1)
	h2, err := s.SubmitTimer(nil, 5)
	require.NoError(t, err)
	assert.Nil(t, h2)
	h3, err := s.SubmitWorkerJob(5, nil)
	require.NoError(t, err)
	assert.Nil(t, h3)

	trace, err := s.Run()
	require.NoError(t, err)
	assert.Empty(t, trace)
}
