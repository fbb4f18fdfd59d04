// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

// Handle is a cancellable reference returned by every submission API.
// Handles are only valid with the scheduler that issued them.
type Handle interface {
	// ID returns the unique identifier, matching trace entries where the
	// handle's callback appears.
	ID() uint64

	cancel(s *Scheduler) error
}

// CallbackHandle references a submitted callback (immediate, microtask,
// timer, or check phase).
type CallbackHandle struct {
	cb *callback
}

// ID returns the callback's unique identifier.
func (h *CallbackHandle) ID() uint64 {
	return h.cb.id
}

func (h *CallbackHandle) cancel(s *Scheduler) error {
	cb := h.cb
	if cb.done {
		return ErrNotFound
	}
	cb.done = true
	// Not queued means a timer still pending in the heap; the heap discards
	// done entries lazily.
	_ = s.queues.remove(cb)
	if s.metrics != nil {
		s.metrics.callbacksCancelled++
	}
	return nil
}

// JobHandle references a job submitted to the worker pool.
type JobHandle struct {
	j *job
}

// ID returns the job's unique identifier. Note that the job's completion
// callback is a distinct entity and receives its own ID when enqueued onto
// the IO phase queue.
func (h *JobHandle) ID() uint64 {
	return h.j.id
}

// State returns the job's current lifecycle state.
func (h *JobHandle) State() JobState {
	return h.j.state
}

func (h *JobHandle) cancel(s *Scheduler) error {
	if err := s.pool.cancel(h.j); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.jobsCancelled++
	}
	return nil
}

// IntervalHandle references a repeating timer created by
// [Scheduler.SubmitInterval].
type IntervalHandle struct {
	st *intervalState
}

// ID returns the interval's unique identifier. Each firing is a fresh
// callback with its own ID; this identifies the interval itself.
func (h *IntervalHandle) ID() uint64 {
	return h.st.id
}

func (h *IntervalHandle) cancel(s *Scheduler) error {
	st := h.st
	if st.cancelled {
		return ErrNotFound
	}
	st.cancelled = true
	if st.current != nil && !st.current.cb.done {
		_ = st.current.cancel(s)
	}
	return nil
}
