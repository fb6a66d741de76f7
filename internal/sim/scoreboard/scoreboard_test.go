package scoreboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndTake(t *testing.T) {
	s := New()
	s.Add(Entry{RequestID: 1, Address: 0x100})
	s.Add(Entry{RequestID: 2, Address: 0x200})
	require.Equal(t, 2, s.Len())

	e, ok := s.Take(1)
	require.True(t, ok)
	assert.Equal(t, uint64(0x100), e.Address)
	assert.Equal(t, 1, s.Len())

	_, ok = s.Take(1)
	assert.False(t, ok, "already removed")
}

func TestSweepTimeoutsRemovesOnlyStaleEntries(t *testing.T) {
	s := New()
	s.Add(Entry{RequestID: 1, RequestTime: 0})
	s.Add(Entry{RequestID: 2, RequestTime: 900})

	timedOut := s.SweepTimeouts(1000, 500)
	require.Len(t, timedOut, 1)
	assert.Equal(t, uint64(1), timedOut[0].RequestID)
	assert.Equal(t, 1, s.Len())

	_, stillThere := s.Take(2)
	assert.True(t, stillThere)
}
