package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsim/macsim/internal/sim/core"
	"github.com/macsim/macsim/internal/sim/warp"
)

func newTestCore(sched core.Scheduler) *core.Core {
	c := core.New(0, nil, nil, false, sched, nil, nil)
	return c
}

func TestRoundRobinRotatesFIFO(t *testing.T) {
	c := newTestCore(RoundRobin{})
	w0 := warp.New(0, 0, "")
	w1 := warp.New(1, 0, "")
	c.Dispatched = []*warp.Warp{w0, w1}

	got, ok := RoundRobin{}.Select(c)
	require.True(t, ok)
	assert.Same(t, w0, got)
	assert.Equal(t, []*warp.Warp{w1}, c.Dispatched)
}

func TestGTOStaysOnLastScheduledWhileStillDispatched(t *testing.T) {
	c := newTestCore(GTO{})
	w0 := warp.New(0, 0, "")
	w1 := warp.New(1, 0, "")
	w0.GTODispatchTimestamp = 5
	w1.GTODispatchTimestamp = 1
	c.Dispatched = []*warp.Warp{w0, w1}

	first, ok := GTO{}.Select(c)
	require.True(t, ok)
	assert.Same(t, w1, first, "oldest dispatch timestamp wins with no prior last-scheduled warp")

	c.Dispatched = append(c.Dispatched, first) // parked back after a stall, as core.Tick would do
	second, ok := GTO{}.Select(c)
	require.True(t, ok)
	assert.Same(t, w1, second, "last-scheduled warp is preferred while still dispatched")
}

func TestGTOFallsBackToOldestWhenLastScheduledGone(t *testing.T) {
	c := newTestCore(GTO{})
	w0 := warp.New(0, 0, "")
	w1 := warp.New(1, 0, "")
	c.GTOLastWarpID = 99 // not present in Dispatched
	c.GTOHasLastWarp = true
	w0.GTODispatchTimestamp = 10
	w1.GTODispatchTimestamp = 2
	c.Dispatched = []*warp.Warp{w0, w1}

	got, ok := GTO{}.Select(c)
	require.True(t, ok)
	assert.Same(t, w1, got)
}

func TestCCWSPicksFirstAdmittedInUnsortedOrder(t *testing.T) {
	c := newTestCore(CCWS{})
	hot := warp.New(0, 0, "")
	hot.CCWSScore = 150
	medium := warp.New(1, 0, "")
	medium.CCWSScore = 100
	cold := warp.New(2, 0, "")
	cold.CCWSScore = 50
	// cumCutoff = RunningWarpCount() * CCWSBase = 3 * 100 = 300
	c.Dispatched = []*warp.Warp{cold, medium, hot}

	// ranked by score descending: hot(150, cum 0->150), medium(100, cum 150->250),
	// cold(50, pre-sum 250 <= 300 so it IS admitted too) -- all three fit under
	// this cutoff, so the winner is whichever comes first in unsorted order.
	got, ok := CCWS{}.Select(c)
	require.True(t, ok)
	assert.Same(t, cold, got)
}

func TestCCWSExcludesWarpsOverCutoff(t *testing.T) {
	c := newTestCore(CCWS{})
	hot := warp.New(0, 0, "")
	hot.CCWSScore = 250
	medium := warp.New(1, 0, "")
	medium.CCWSScore = 100
	// cumCutoff = 2 * 100 = 200
	// ranked: hot(250, pre-sum 0 <= 200, admitted, cum -> 250),
	//         medium(100, pre-sum 250 > 200, excluded)
	c.Dispatched = []*warp.Warp{medium, hot}

	got, ok := CCWS{}.Select(c)
	require.True(t, ok)
	assert.Same(t, hot, got, "medium is excluded by the cutoff, leaving hot as the only admitted warp")
}

func TestCCWSNeverReturnsFalseWhenDispatchedNonEmpty(t *testing.T) {
	c := newTestCore(CCWS{})
	lone := warp.New(0, 0, "")
	lone.CCWSScore = 10_000 // far above any plausible cutoff
	c.Dispatched = []*warp.Warp{lone}

	got, ok := CCWS{}.Select(c)
	require.True(t, ok)
	assert.Same(t, lone, got)
}
