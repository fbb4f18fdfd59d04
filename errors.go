// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrInvalidDuration is returned when a worker job or interval is
	// submitted with a non-positive tick duration.
	ErrInvalidDuration = errors.New("simloop: duration must be a positive tick count")

	// ErrInvalidTime is returned when the clock is asked to move backwards.
	ErrInvalidTime = errors.New("simloop: cannot advance clock backwards")

	// ErrInvalidQueue is returned when a callback targets an unknown queue.
	ErrInvalidQueue = errors.New("simloop: unknown queue")

	// ErrInvalidConfig is returned for out-of-range configuration values.
	ErrInvalidConfig = errors.New("simloop: invalid configuration value")

	// ErrNotFound is returned when cancelling a handle that is unknown,
	// already executed, already completed, or already cancelled.
	ErrNotFound = errors.New("simloop: handle not found or already settled")

	// ErrAlreadyRunning is returned when Run, Step, or Configure is called
	// while a run is in progress.
	ErrAlreadyRunning = errors.New("simloop: scheduler is already running")

	// ErrDeadlock is returned if the scheduler reaches its terminal state
	// with callbacks still queued. This should not occur by construction;
	// it exists so the condition is loud rather than silent.
	ErrDeadlock = errors.New("simloop: callbacks pending but unreachable")
)

// LivelockError reports a queue that failed to drain within the configured
// guard, indicating runaway self-resubmission in client code. [Scheduler.Run]
// aborts with a LivelockError and returns the partial execution trace.
type LivelockError struct {
	// Queue is the queue that exceeded the guard.
	Queue QueueName

	// Iterations is the number of callbacks executed before giving up.
	Iterations int
}

// Error implements the error interface.
func (e *LivelockError) Error() string {
	return fmt.Sprintf("simloop: %s queue did not drain after %d iterations", e.Queue, e.Iterations)
}

// Is reports whether target is a *LivelockError, enabling type-based
// matching via [errors.Is] without an exact field match.
func (e *LivelockError) Is(target error) bool {
	var other *LivelockError
	return errors.As(target, &other)
}

// UncaughtError wraps a value recovered from a panicking callback. The
// scheduler recovers the panic, records it, and keeps running; the wrapped
// value is delivered to the [WithUncaughtHandler] hook.
type UncaughtError struct {
	// Value is the recovered panic value.
	Value any

	// CallbackID identifies the callback that panicked, matching the ID in
	// the execution trace.
	CallbackID uint64
}

// Error implements the error interface.
func (e *UncaughtError) Error() string {
	return fmt.Sprintf("simloop: callback %d panicked: %v", e.CallbackID, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] through the cause chain.
// If the panic Value is not an error, returns nil.
func (e *UncaughtError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
