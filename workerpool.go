// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

// JobState represents the lifecycle state of a worker pool job.
//
// Transitions are monotonic: Queued → Running → Completed, with Cancelled
// reachable from Queued or Running. There are no reverse transitions.
type JobState uint8

const (
	// JobQueued means all worker slots are busy and the job is waiting FIFO.
	JobQueued JobState = iota
	// JobRunning means the job occupies a worker slot until its completion tick.
	JobRunning
	// JobCompleted means the job finished and its completion callback was
	// enqueued onto the IO phase queue.
	JobCompleted
	// JobCancelled means the job was cancelled; its completion callback will
	// never fire. A job cancelled while running still holds its worker slot
	// until the natural completion tick, modelling non-preemptible work.
	JobCancelled
)

// String returns a human-readable representation of the job state.
func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "Queued"
	case JobRunning:
		return "Running"
	case JobCompleted:
		return "Completed"
	case JobCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// job is one unit of work submitted to the worker pool. The pool owns the
// job exclusively until it completes or is cancelled; it is dropped from
// all internal structures as soon as its completion callback is enqueued.
type job struct {
	fn         CallbackFunc
	id         uint64
	duration   Tick
	completion Tick // valid while running
	state      JobState
}

// workerPool models bounded-concurrency execution: at most capacity jobs
// run simultaneously, overflow queues FIFO, and a job completes after its
// logical duration has elapsed on the clock. Only completion timing is
// parallel; no client code ever executes concurrently.
type workerPool struct {
	clock    *Clock
	complete func(*job) // routes completions onto the IO phase queue
	running  []*job     // submission order; len(running) <= capacity always
	queued   []*job     // FIFO overflow
	capacity int
}

func newWorkerPool(capacity int, clock *Clock) *workerPool {
	return &workerPool{
		clock:    clock,
		capacity: capacity,
	}
}

// submit admits the job immediately if a worker is free, recording its
// completion tick; otherwise appends it to the overflow queue.
func (p *workerPool) submit(j *job) {
	if len(p.running) < p.capacity {
		j.state = JobRunning
		j.completion = p.clock.Now() + j.duration
		p.running = append(p.running, j)
	} else {
		j.state = JobQueued
		p.queued = append(p.queued, j)
	}
}

// cancel transitions the job to Cancelled. A queued job is removed outright
// and its callback never fires. A running job keeps its worker slot until
// the natural completion tick; only the callback is suppressed. Jobs that
// already completed or were already cancelled fail with [ErrNotFound].
func (p *workerPool) cancel(j *job) error {
	switch j.state {
	case JobQueued:
		for i, q := range p.queued {
			if q == j {
				copy(p.queued[i:], p.queued[i+1:])
				p.queued[len(p.queued)-1] = nil
				p.queued = p.queued[:len(p.queued)-1]
				break
			}
		}
		j.state = JobCancelled
		return nil
	case JobRunning:
		j.state = JobCancelled
		return nil
	default:
		return ErrNotFound
	}
}

// tick harvests every job whose completion tick has been reached. Ties at
// the same tick complete in ascending submission order. Completed jobs have
// their callback routed via complete; cancelled jobs just free the slot.
// Freed slots are then refilled from the overflow queue, oldest first.
func (p *workerPool) tick(now Tick) {
	var due []*job
	kept := p.running[:0]
	for _, j := range p.running {
		if j.completion <= now {
			due = append(due, j)
		} else {
			kept = append(kept, j)
		}
	}
	for i := len(kept); i < len(p.running); i++ {
		p.running[i] = nil
	}
	p.running = kept

	// running is appended in admission order, and admission is FIFO, so due
	// is already in submission order.
	for _, j := range due {
		if j.state == JobCancelled {
			continue
		}
		j.state = JobCompleted
		p.complete(j)
	}

	for len(p.queued) > 0 && len(p.running) < p.capacity {
		j := p.queued[0]
		p.queued[0] = nil
		p.queued = p.queued[1:]
		j.state = JobRunning
		j.completion = now + j.duration
		p.running = append(p.running, j)
	}
}

// nextCompletion returns the earliest completion tick among occupied worker
// slots, including slots held by cancelled jobs, which must still drain
// before queued work can be admitted.
func (p *workerPool) nextCompletion() (Tick, bool) {
	var best Tick
	var ok bool
	for _, j := range p.running {
		if !ok || j.completion < best {
			best = j.completion
			ok = true
		}
	}
	return best, ok
}

// idle reports whether the pool has no running or queued jobs.
func (p *workerPool) idle() bool {
	return len(p.running) == 0 && len(p.queued) == 0
}
