// Package schedule implements the three warp scheduling disciplines:
// round-robin, greedy-then-oldest, and cache-conscious warp scheduling.
// Each satisfies core.Scheduler.
//
// Grounded on original_source/.../core.cpp's schedule_warps_rr/gto/ccws.
package schedule

import (
	"sort"

	"github.com/macsim/macsim/internal/sim/core"
	"github.com/macsim/macsim/internal/sim/warp"
)

// RoundRobin always runs the front of the dispatched queue next.
type RoundRobin struct{}

// Select implements core.Scheduler.
func (RoundRobin) Select(c *core.Core) (*warp.Warp, bool) {
	if len(c.Dispatched) == 0 {
		return nil, false
	}
	w := c.Dispatched[0]
	c.Dispatched = c.Dispatched[1:]
	return w, true
}

// GTO (greedy-then-oldest) keeps running the same warp until it stalls,
// then falls back to the oldest-dispatched warp.
type GTO struct{}

// Select implements core.Scheduler. The "last scheduled" marker lives on
// the core itself (see core.Core.GTOLastWarpID) rather than as hidden
// per-scheduler state, unlike the original's function-local static map.
func (GTO) Select(c *core.Core) (*warp.Warp, bool) {
	if len(c.Dispatched) == 0 {
		return nil, false
	}

	if c.GTOHasLastWarp {
		for _, w := range c.Dispatched {
			if w.WarpID == c.GTOLastWarpID {
				c.RemoveDispatched(w)
				return w, true
			}
		}
	}

	oldest := c.Dispatched[0]
	for _, w := range c.Dispatched[1:] {
		if w.GTODispatchTimestamp < oldest.GTODispatchTimestamp {
			oldest = w
		}
	}
	c.RemoveDispatched(oldest)
	c.GTOLastWarpID = oldest.WarpID
	c.GTOHasLastWarp = true
	return oldest, true
}

// CCWS throttles warps whose victim-tag-array feedback marks them as
// thrashing the cache, admitting the highest-scored warps up to a
// per-core cumulative cutoff.
type CCWS struct{}

// Select implements core.Scheduler.
func (CCWS) Select(c *core.Core) (*warp.Warp, bool) {
	if len(c.Dispatched) == 0 {
		return nil, false
	}

	cumCutoff := uint64(c.RunningWarpCount()) * warp.CCWSBase

	ranked := make([]*warp.Warp, len(c.Dispatched))
	copy(ranked, c.Dispatched)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CCWSScore > ranked[j].CCWSScore
	})

	admitted := make(map[*warp.Warp]bool, len(ranked))
	var cum uint64
	for _, w := range ranked {
		if cum > cumCutoff {
			break
		}
		admitted[w] = true
		cum += uint64(w.CCWSScore)
	}

	for _, w := range c.Dispatched {
		if admitted[w] {
			c.RemoveDispatched(w)
			return w, true
		}
	}
	// unreachable: the highest-ranked warp's pre-admission sum is always
	// 0 <= cumCutoff, so admitted is never empty when Dispatched isn't.
	return nil, false
}
