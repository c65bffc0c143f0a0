// Package telemetry provides the best-effort, never-blocking counters
// and the total elapsed time the pipeline controller exposes on
// success. No per-stage durations are recorded.
// Counters are plain atomics so the frame and segment workers can
// increment them from any goroutine without a lock, and Snapshot never
// blocks or mutates state the data path depends on.
package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters is a set of atomic counters updated from any goroutine.
type Counters struct {
	FramesSealed      int64
	FramesOpened      int64
	SegmentsCommitted int64
	SegmentsAborted   int64
	BytesIn           int64
	BytesOut          int64
}

func (c *Counters) AddFramesSealed(n int64)      { atomic.AddInt64(&c.FramesSealed, n) }
func (c *Counters) AddFramesOpened(n int64)      { atomic.AddInt64(&c.FramesOpened, n) }
func (c *Counters) AddSegmentsCommitted(n int64) { atomic.AddInt64(&c.SegmentsCommitted, n) }
func (c *Counters) AddSegmentsAborted(n int64)   { atomic.AddInt64(&c.SegmentsAborted, n) }
func (c *Counters) AddBytesIn(n int64)           { atomic.AddInt64(&c.BytesIn, n) }
func (c *Counters) AddBytesOut(n int64)          { atomic.AddInt64(&c.BytesOut, n) }

// Snapshot is a point-in-time, immutable copy of Counters plus the
// time elapsed since the run started, returned to the caller on
// pipeline success.
type Snapshot struct {
	FramesSealed      int64
	FramesOpened      int64
	SegmentsCommitted int64
	SegmentsAborted   int64
	BytesIn           int64
	BytesOut          int64
	Elapsed           time.Duration
}

// Snapshot takes an atomic point-in-time read of c.
func (c *Counters) Snapshot(start time.Time) Snapshot {
	return Snapshot{
		FramesSealed:      atomic.LoadInt64(&c.FramesSealed),
		FramesOpened:      atomic.LoadInt64(&c.FramesOpened),
		SegmentsCommitted: atomic.LoadInt64(&c.SegmentsCommitted),
		SegmentsAborted:   atomic.LoadInt64(&c.SegmentsAborted),
		BytesIn:           atomic.LoadInt64(&c.BytesIn),
		BytesOut:          atomic.LoadInt64(&c.BytesOut),
		Elapsed:           time.Since(start),
	}
}
