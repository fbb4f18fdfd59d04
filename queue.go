// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

// QueueName identifies one of the scheduler's callback queues.
//
// The set of queues has a fixed total priority order: Immediate > Microtask
// > (Timer, IO, Check in that rotation). Within a queue, order is strict
// FIFO by submission.
type QueueName uint8

const (
	// QueueImmediate is the highest-priority queue, fully drained before
	// anything else each step (the nextTick analogue).
	QueueImmediate QueueName = iota
	// QueueMicrotask is fully drained after the immediate queue and before
	// any macrotask phase.
	QueueMicrotask
	// QueueTimer is the macrotask phase serving due timer callbacks.
	QueueTimer
	// QueueIO is the macrotask phase serving worker pool completions.
	QueueIO
	// QueueCheck is the macrotask phase served after timers and IO
	// (the setImmediate analogue).
	QueueCheck

	numQueues = 5
)

// macroOrder is the fixed rotation tried when selecting a single macrotask.
var macroOrder = [...]QueueName{QueueTimer, QueueIO, QueueCheck}

// String returns a human-readable representation of the queue name.
func (q QueueName) String() string {
	switch q {
	case QueueImmediate:
		return "immediate"
	case QueueMicrotask:
		return "microtask"
	case QueueTimer:
		return "timer"
	case QueueIO:
		return "io"
	case QueueCheck:
		return "check"
	default:
		return "unknown"
	}
}

// CallbackFunc is a deferred unit of scheduler-level work. Callbacks are
// always invoked on the scheduler's single execution context and run to
// completion; a callback may submit further callbacks or jobs while
// executing.
type CallbackFunc func()

// callback is the internal representation of one queued unit of work. A
// callback belongs to at most one queue at a time; once dequeued for
// execution it is removed before running, so a callback that resubmits
// itself always creates a fresh callback entity.
type callback struct {
	fn     CallbackFunc
	id     uint64
	fireAt Tick // timer callbacks only: submission tick + delay
	queue  QueueName
	done   bool // executed or cancelled
}

// queueSet owns the callback queues and serves them in priority order.
type queueSet struct {
	queues [numQueues][]*callback
}

func newQueueSet() *queueSet {
	return &queueSet{}
}

// enqueue appends to the named queue's FIFO tail.
func (qs *queueSet) enqueue(name QueueName, cb *callback) error {
	if name >= numQueues {
		return ErrInvalidQueue
	}
	cb.queue = name
	qs.queues[name] = append(qs.queues[name], cb)
	return nil
}

// popOne removes and returns the oldest callback from the named queue, or
// nil if the queue is empty. Macrotask phases are served one callback per
// scheduler step, never fully drained.
func (qs *queueSet) popOne(name QueueName) *callback {
	if name >= numQueues || len(qs.queues[name]) == 0 {
		return nil
	}
	q := qs.queues[name]
	cb := q[0]
	q[0] = nil
	qs.queues[name] = q[1:]
	return cb
}

// drainAll repeatedly pops and executes from the named queue until it is
// observed empty, including callbacks enqueued by execution of earlier
// callbacks in the same drain, returning the number executed. The guard
// bounds runaway self-resubmission; exceeding it fails with [LivelockError].
func (qs *queueSet) drainAll(name QueueName, guard int, execute func(*callback)) (int, error) {
	if name >= numQueues {
		return 0, ErrInvalidQueue
	}
	n := 0
	for ; len(qs.queues[name]) > 0; n++ {
		if n >= guard {
			return n, &LivelockError{Queue: name, Iterations: n}
		}
		execute(qs.popOne(name))
	}
	return n, nil
}

// remove deletes the callback from whichever queue currently holds it,
// preserving relative order of the remainder. Returns false if the callback
// is not queued (already executed, or still pending in the timer heap).
func (qs *queueSet) remove(cb *callback) bool {
	q := qs.queues[cb.queue]
	for i, c := range q {
		if c == cb {
			copy(q[i:], q[i+1:])
			q[len(q)-1] = nil
			qs.queues[cb.queue] = q[:len(q)-1]
			return true
		}
	}
	return false
}

// size returns the number of callbacks pending on the named queue.
func (qs *queueSet) size(name QueueName) int {
	if name >= numQueues {
		return 0
	}
	return len(qs.queues[name])
}

// macroReady reports whether any macrotask phase has a callback ready.
func (qs *queueSet) macroReady() bool {
	for _, name := range macroOrder {
		if len(qs.queues[name]) > 0 {
			return true
		}
	}
	return false
}

// pendingAny reports whether any queue holds a callback.
func (qs *queueSet) pendingAny() bool {
	for i := range qs.queues {
		if len(qs.queues[i]) > 0 {
			return true
		}
	}
	return false
}
