// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

// intervalState tracks a repeating timer across firings. Each firing is a
// fresh timer callback (never an in-place reschedule), so every execution
// appears in the trace with its own callback ID.
type intervalState struct {
	fn        CallbackFunc
	current   *CallbackHandle // the pending firing, replaced on each reschedule
	id        uint64
	period    Tick
	cancelled bool
}

// SubmitInterval schedules fn to run every period ticks until the interval
// is cancelled. The first firing is one period after submission.
//
// An interval keeps the simulation alive indefinitely: [Scheduler.Run] will
// not reach its terminal state until the interval is cancelled, typically
// from inside a callback. A period of zero fails with [ErrInvalidDuration].
func (s *Scheduler) SubmitInterval(fn CallbackFunc, period Tick) (*IntervalHandle, error) {
	if fn == nil {
		return nil, nil
	}
	if period == 0 {
		return nil, ErrInvalidDuration
	}
	st := &intervalState{fn: fn, period: period, id: s.nextID()}
	st.schedule(s)
	return &IntervalHandle{st: st}, nil
}

// schedule arms the next firing. The wrapper re-arms after running the
// user's callback unless the interval was cancelled during it.
func (st *intervalState) schedule(s *Scheduler) {
	st.current, _ = s.SubmitTimer(func() {
		st.fn()
		if st.cancelled {
			return
		}
		st.schedule(s)
	}, st.period)
}
