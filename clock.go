package simloop

// Tick is a unit of virtual time. The simulator never sleeps; ticks advance
// only when the scheduler decides no work remains at the current tick.
type Tick uint64

// Clock is a monotonically increasing logical time source.
//
// The scheduler owns the clock for the lifetime of a run and is the only
// component that advances it. Reading the current tick is side-effect free.
type Clock struct {
	now Tick
}

// NewClock creates a clock at tick zero.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current tick.
func (c *Clock) Now() Tick {
	return c.now
}

// AdvanceTo moves the clock forward to the given tick. Advancing to the
// current tick is a no-op; moving backwards fails with [ErrInvalidTime].
func (c *Clock) AdvanceTo(tick Tick) error {
	if tick < c.now {
		return ErrInvalidTime
	}
	c.now = tick
	return nil
}
