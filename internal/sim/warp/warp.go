// Package warp holds per-warp execution state: its trace cursor, its
// victim tag array, and the CCWS/GTO scheduling bookkeeping that travels
// with it regardless of which core it lands on.
//
// Grounded on original_source/.../macsim.h's warp_s.
package warp

import (
	"github.com/macsim/macsim/internal/sim/trace"
	"github.com/macsim/macsim/internal/sim/vta"
)

// CCWSBase is the floor every warp's CCWS score decays toward and the
// value it starts at.
const CCWSBase = 100

// DefaultPrefetchDepth is how many records Refill reads at a time when the
// caller does not override it.
const DefaultPrefetchDepth = 32

// Warp is one warp's live execution state.
type Warp struct {
	WarpID  uint32
	BlockID uint32

	VTA *vta.VTA

	CCWSScore            int
	GTODispatchTimestamp uint64

	reader    *trace.Reader
	buffer    []trace.Record
	ended     bool
	tracePath string
}

// New creates a warp bound to the trace file at path, ready to be pushed
// onto a core's dispatched queue.
func New(warpID, blockID uint32, tracePath string) *Warp {
	return &Warp{
		WarpID:    warpID,
		BlockID:   blockID,
		VTA:       vta.New(),
		CCWSScore: CCWSBase,
		tracePath: tracePath,
	}
}

// Open opens the warp's backing trace file. Must be called once before
// Refill.
func (w *Warp) Open() error {
	r, err := trace.Open(w.tracePath)
	if err != nil {
		return err
	}
	w.reader = r
	return nil
}

// Peek returns the front of the prefetch buffer without consuming it.
func (w *Warp) Peek() (trace.Record, bool) {
	if len(w.buffer) == 0 {
		return trace.Record{}, false
	}
	return w.buffer[0], true
}

// Pop consumes the front record, advancing the instruction pointer.
func (w *Warp) Pop() {
	if len(w.buffer) > 0 {
		w.buffer = w.buffer[1:]
	}
}

// Refill tops the prefetch buffer back up to depth records, reading from
// the trace file. It returns the number of records actually read; zero
// means the trace is exhausted and the warp should be retired.
func (w *Warp) Refill(depth int) (int, error) {
	if depth <= 0 {
		depth = DefaultPrefetchDepth
	}
	read := 0
	for len(w.buffer) < depth {
		rec, err := w.reader.Next()
		if err != nil {
			w.ended = true
			break
		}
		w.buffer = append(w.buffer, rec)
		read++
	}
	return read, nil
}

// Ended reports whether the warp's trace has been fully consumed.
func (w *Warp) Ended() bool {
	return w.ended && len(w.buffer) == 0
}

// Close releases the warp's trace file handle.
func (w *Warp) Close() error {
	if w.reader == nil {
		return nil
	}
	return w.reader.Close()
}
