package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessMissThenInsertThenHit(t *testing.T) {
	c := New(1, 2, 64) // one 2-way set

	_, hit := c.Access(0x40)
	assert.False(t, hit)

	_, victim := c.Insert(0x40)
	assert.False(t, victim.Valid)

	line, hit := c.Access(0x40)
	assert.True(t, hit)
	assert.False(t, line.Dirty)
}

func TestInsertEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(1, 2, 64) // one 2-way set, both lines map here

	c.Insert(0x000) // way 0
	c.Insert(0x040) // way 1, both same set (line size 64, 1 set)

	// touch 0x000 so 0x040 becomes the LRU way
	c.Access(0x000)

	_, victim := c.Insert(0x080)
	assert.True(t, victim.Valid)
	assert.Equal(t, uint64(0x040), victim.Addr)

	_, hit := c.Access(0x000)
	assert.True(t, hit, "recently accessed line must survive eviction")

	_, hit = c.Access(0x040)
	assert.False(t, hit, "evicted line must miss")
}

func TestInsertReportsDirtyVictim(t *testing.T) {
	c := New(1, 1, 64) // single line, direct-mapped

	line, _ := c.Insert(0x000)
	line.Dirty = true

	_, victim := c.Insert(0x040)
	assert.True(t, victim.Valid)
	assert.True(t, victim.Dirty)
}

func TestFindTagAndSetIsPure(t *testing.T) {
	c := New(4, 1, 64)
	tag1, set1 := c.FindTagAndSet(0x1000)
	tag2, set2 := c.FindTagAndSet(0x1000)
	assert.Equal(t, tag1, tag2)
	assert.Equal(t, set1, set2)
}
