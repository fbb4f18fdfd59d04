package simloop

import "fmt"

// TraceEvent records one executed callback: the tick it ran at, the queue
// it was dispatched from, and the callback's unique ID.
type TraceEvent struct {
	Tick       Tick
	Queue      QueueName
	CallbackID uint64
}

// String returns a compact representation, e.g. "(3 io #7)".
func (e TraceEvent) String() string {
	return fmt.Sprintf("(%d %s #%d)", e.Tick, e.Queue, e.CallbackID)
}

// Trace is the ordered execution history of a run: what ran, in what order.
// Because the simulator is deterministic, a given set of submissions always
// produces the same trace.
type Trace []TraceEvent

// IDs returns the callback IDs in execution order.
func (t Trace) IDs() []uint64 {
	ids := make([]uint64, len(t))
	for i, e := range t {
		ids[i] = e.CallbackID
	}
	return ids
}

// Ticks returns the tick of each event in execution order.
func (t Trace) Ticks() []Tick {
	ticks := make([]Tick, len(t))
	for i, e := range t {
		ticks[i] = e.Tick
	}
	return ticks
}
