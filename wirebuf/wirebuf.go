// Package wirebuf implements a reference-counted, O(1)-sliceable byte
// container: the carrier of a segment's wire bytes. On the decrypt
// path a segment's wire is read straight into it and the frame views
// and the segment digest hold ranges into it until the segment is fully
// processed. On the encrypt path each frame is sealed into its own
// allocation first and then copied into the segment's WireBuffer.
//
// Backed by tiered sync.Pool buffer pools, generalized from a flat
// []byte pool into a reference-counted wrapper so a segment's wire
// buffer can be returned to the pool exactly once all outstanding
// frame views have released it.
package wirebuf

import (
	"sync"
	"sync/atomic"
)

const (
	numTiers    = 6
	minTierSize = 4 * 1024 // 4KiB
	tierMulti   = 4
)

var (
	tierPools [numTiers]sync.Pool
	tierSizes [numTiers]int
)

func init() {
	size := minTierSize
	for i := 0; i < numTiers; i++ {
		tierSizes[i] = size
		poolSize := size
		tierPools[i] = sync.Pool{New: func() interface{} {
			b := make([]byte, poolSize)
			return &b
		}}
		size *= tierMulti
	}
}

func acquireRaw(size int) []byte {
	for i := 0; i < numTiers; i++ {
		if size <= tierSizes[i] {
			p := tierPools[i].Get().(*[]byte)
			return (*p)[:size]
		}
	}
	return make([]byte, size)
}

func releaseRaw(b []byte) {
	c := cap(b)
	for i := numTiers - 1; i >= 0; i-- {
		if c == tierSizes[i] {
			full := b[:c]
			tierPools[i].Put(&full)
			return
		}
	}
	// Oversized or non-pool-shaped capacity: let the GC reclaim it.
}

// WireBuffer is a reference-counted byte container. The segment worker
// is always the first owner (refs=1 at New); each frame view that needs
// to outlive the segment worker's own use calls Acquire and later
// Release. The backing array returns to its size tier only once refs
// reaches zero.
type WireBuffer struct {
	data   []byte
	refs   int32
	pooled bool
}

// New allocates (or reuses from the pool) a WireBuffer of exactly size
// bytes, owned by the caller with an initial reference count of 1.
func New(size int) *WireBuffer {
	return &WireBuffer{data: acquireRaw(size), refs: 1, pooled: true}
}

// Wrap adopts an existing slice as a non-pooled WireBuffer. Used when
// bytes arrive from an external Source and pooling their backing array
// would be unsafe (the caller may still hold it).
func Wrap(data []byte) *WireBuffer {
	return &WireBuffer{data: data, refs: 1}
}

// Bytes returns the full backing slice.
func (w *WireBuffer) Bytes() []byte { return w.data }

// Len returns the buffer length.
func (w *WireBuffer) Len() int { return len(w.data) }

// Slice returns a view into [start:end). The view shares the backing
// array (O(1), no copy); callers that need the view to outlive this
// WireBuffer's own lifetime must call Acquire first.
func (w *WireBuffer) Slice(start, end int) []byte {
	return w.data[start:end]
}

// Acquire increments the reference count. Call once per outstanding
// view that will later call Release.
func (w *WireBuffer) Acquire() {
	atomic.AddInt32(&w.refs, 1)
}

// Release decrements the reference count, returning the backing array
// to its pool tier once no references remain.
func (w *WireBuffer) Release() {
	if atomic.AddInt32(&w.refs, -1) == 0 {
		if w.pooled {
			releaseRaw(w.data)
		}
		w.data = nil
	}
}
