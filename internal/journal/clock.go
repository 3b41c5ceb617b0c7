package journal

import "sync/atomic"

// clock is a monotonic logical clock for journal row ordering.
//
// Rows are stamped with a strictly increasing seq so ordering never depends
// on wall time. The journal resumes the clock from MAX(seq) on open.
//
// Thread-safety: atomic operations, safe for concurrent use.
type clock struct {
	seq atomic.Int64
}

// newClockAt creates a clock starting at a specific sequence number.
func newClockAt(start int64) *clock {
	c := &clock{}
	c.seq.Store(start)
	return c
}

// next returns the next sequence number and increments the clock.
func (c *clock) next() int64 {
	return c.seq.Add(1)
}

// current returns the current sequence number without incrementing.
func (c *clock) current() int64 {
	return c.seq.Load()
}
