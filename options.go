// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package simloop

import (
	"github.com/joeycumines/logiface"
)

// Defaults applied by [New] and [Scheduler.Configure].
const (
	// DefaultWorkerPoolCapacity is the number of parallel workers.
	DefaultWorkerPoolCapacity = 4

	// DefaultLivelockGuard is the maximum number of callbacks executed in a
	// single immediate/microtask drain before the run aborts.
	DefaultLivelockGuard = 100000
)

// UncaughtHandler is invoked when a callback panics. The error is always a
// [*UncaughtError]; callbackID matches the entry already recorded in the
// execution trace. The run loop continues regardless.
type UncaughtHandler func(err error, callbackID uint64)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger         *logiface.Logger[logiface.Event]
	onUncaught     UncaughtHandler
	capacity       int
	livelockGuard  int
	metricsEnabled bool
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithWorkerPoolCapacity sets the number of parallel workers in the pool.
// Capacity must be at least 1; the default is [DefaultWorkerPoolCapacity].
func WithWorkerPoolCapacity(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n < 1 {
			return ErrInvalidConfig
		}
		opts.capacity = n
		return nil
	}}
}

// WithLivelockGuard sets the maximum number of same-queue re-drain
// iterations before a run aborts with [LivelockError]. The guard must be at
// least 1; the default is [DefaultLivelockGuard].
func WithLivelockGuard(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if n < 1 {
			return ErrInvalidConfig
		}
		opts.livelockGuard = n
		return nil
	}}
}

// WithLogger attaches a structured logger to the scheduler. Run start and
// completion log at debug level, clock advances at trace level, and
// uncaught callback panics at error level. A nil logger is accepted and
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithUncaughtHandler sets the hook invoked when a callback panics. When no
// handler is configured, recovered panics are only logged.
func WithUncaughtHandler(fn UncaughtHandler) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.onUncaught = fn
		return nil
	}}
}

// WithMetrics enables runtime metrics collection. When enabled, counters
// can be read via [Scheduler.Metrics].
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		capacity:      DefaultWorkerPoolCapacity,
		livelockGuard: DefaultLivelockGuard,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Config carries the runtime-adjustable settings accepted by
// [Scheduler.Configure]. Zero-valued fields leave the current setting
// unchanged.
type Config struct {
	// WorkerPoolCapacity is the number of parallel workers.
	WorkerPoolCapacity int

	// LivelockGuard is the maximum same-queue re-drain iteration count.
	LivelockGuard int
}
