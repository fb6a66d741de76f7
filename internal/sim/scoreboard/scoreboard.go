// Package scoreboard tracks in-flight off-chip memory requests so a
// response can be matched back to the warp and core that issued it, and
// so a request that never comes back can be detected and synthesized.
//
// Grounded on original_source/.../macsim.cpp's GPU_scoreboard and
// get_mem_response.
package scoreboard

// Entry is one in-flight memory request.
type Entry struct {
	RequestID   uint64
	Address     uint64
	RequestTime uint64
	CoreID      int
	WarpID      uint32
	InsertInL1  bool
	MarkDirty   bool
}

// Scoreboard is an append-and-linear-scan table of in-flight requests,
// mirroring the original's vector<GPU_scoreboard_entry> shape rather than
// a map, since entries are found by scanning in both implementations.
type Scoreboard struct {
	entries []Entry
}

// New returns an empty scoreboard.
func New() *Scoreboard {
	return &Scoreboard{}
}

// Add records a new in-flight request.
func (s *Scoreboard) Add(e Entry) {
	s.entries = append(s.entries, e)
}

// Take finds and removes the entry for requestID.
func (s *Scoreboard) Take(requestID uint64) (Entry, bool) {
	for i, e := range s.entries {
		if e.RequestID == requestID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// Len reports how many requests are currently outstanding.
func (s *Scoreboard) Len() int { return len(s.entries) }

// SweepTimeouts removes and returns every entry whose age (now -
// RequestTime) exceeds maxAge. Callers gate this on the "at least 2000
// responses observed" precondition from the original before calling with
// a non-trivial maxAge.
func (s *Scoreboard) SweepTimeouts(now, maxAge uint64) []Entry {
	var timedOut []Entry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if now-e.RequestTime > maxAge {
			timedOut = append(timedOut, e)
		} else {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return timedOut
}
