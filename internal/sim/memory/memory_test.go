package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickUntilDone drives m until it produces a completion, returning it along
// with how many Tick calls that took.
func tickUntilDone(t *testing.T, m *Memory, maxTicks int) (Request, int) {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		if req, ok := m.Tick(); ok {
			return req, i
		}
	}
	t.Fatalf("no completion within %d ticks", maxTicks)
	return Request{}, 0
}

func TestServesRequestOnlyAfterLatencyElapses(t *testing.T) {
	m := New(3)
	m.Enqueue(Request{ID: 1, IssueTime: 0})

	req, ticks := tickUntilDone(t, m, 10)
	assert.Equal(t, uint64(1), req.ID)
	assert.Greater(t, ticks, 3, "must not complete within fewer ticks than the latency")
}

func TestHeadOfLineBlocksLaterRequestEvenPastItsOwnDeadline(t *testing.T) {
	m := New(2)
	m.Enqueue(Request{ID: 1, IssueTime: 0})
	m.Enqueue(Request{ID: 2, IssueTime: 0}) // equally ready, but behind ID 1

	first, firstTicks := tickUntilDone(t, m, 10)
	require.Equal(t, uint64(1), first.ID, "front of queue completes first regardless of both being ready")

	second, secondTicks := tickUntilDone(t, m, 10)
	assert.Equal(t, uint64(2), second.ID)
	assert.Greater(t, secondTicks, 0)
	_ = firstTicks
}

func TestPendingCounts(t *testing.T) {
	m := New(1)
	assert.Equal(t, 0, m.Pending())
	m.Enqueue(Request{ID: 1})
	m.Enqueue(Request{ID: 2})
	assert.Equal(t, 2, m.Pending())
}
