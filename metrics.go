package simloop

// Metrics is a snapshot of scheduler counters, collected only when the
// scheduler was created with [WithMetrics]. Counters accumulate across runs.
type Metrics struct {
	// Executed counts callbacks dispatched per queue.
	ImmediateExecuted uint64
	MicrotaskExecuted uint64
	TimerExecuted     uint64
	IOExecuted        uint64
	CheckExecuted     uint64

	// ClockAdvances counts explicit clock movements (not individual ticks;
	// the clock jumps straight to the next interesting tick).
	ClockAdvances uint64

	// Job lifecycle totals.
	JobsSubmitted uint64
	JobsCompleted uint64
	JobsCancelled uint64

	// CallbacksCancelled counts cancelled callback handles.
	CallbacksCancelled uint64

	// UncaughtPanics counts callbacks that panicked and were recovered.
	UncaughtPanics uint64

	// Peak depths observed on the fully-drained queues; useful for spotting
	// resubmission storms that stayed under the livelock guard.
	PeakImmediateDepth int
	PeakMicrotaskDepth int
}

// metricsState is the internal mutable counterpart of Metrics. It is only
// touched from the scheduler's execution context, so no synchronization is
// needed.
type metricsState struct {
	executed           [numQueues]uint64
	clockAdvances      uint64
	jobsSubmitted      uint64
	jobsCompleted      uint64
	jobsCancelled      uint64
	callbacksCancelled uint64
	uncaughtPanics     uint64
	peakDepth          [numQueues]int
}

func (m *metricsState) observeDepth(name QueueName, depth int) {
	if depth > m.peakDepth[name] {
		m.peakDepth[name] = depth
	}
}

func (m *metricsState) snapshot() Metrics {
	return Metrics{
		ImmediateExecuted:  m.executed[QueueImmediate],
		MicrotaskExecuted:  m.executed[QueueMicrotask],
		TimerExecuted:      m.executed[QueueTimer],
		IOExecuted:         m.executed[QueueIO],
		CheckExecuted:      m.executed[QueueCheck],
		ClockAdvances:      m.clockAdvances,
		JobsSubmitted:      m.jobsSubmitted,
		JobsCompleted:      m.jobsCompleted,
		JobsCancelled:      m.jobsCancelled,
		CallbacksCancelled: m.callbacksCancelled,
		UncaughtPanics:     m.uncaughtPanics,
		PeakImmediateDepth: m.peakDepth[QueueImmediate],
		PeakMicrotaskDepth: m.peakDepth[QueueMicrotask],
	}
}

// Metrics returns a copy of the collected counters. The zero value is
// returned when metrics collection is disabled.
func (s *Scheduler) Metrics() Metrics {
	if s.metrics == nil {
		return Metrics{}
	}
	return s.metrics.snapshot()
}
