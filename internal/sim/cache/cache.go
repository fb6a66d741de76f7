// Package cache implements a set-associative, strict-LRU cache, used for
// both cache levels of the memory hierarchy. It is address-agnostic about
// write policy (write-through vs write-back, write-allocate vs
// no-write-allocate) -- those are enforced by the caller (the core and the
// simulator's response-repair path), not by the cache itself.
package cache

import (
	"github.com/macsim/macsim/internal/bits"
)

// Line is one cache line's payload: whether it holds valid data, its tag,
// and whether it has been written since it was installed.
type Line struct {
	Valid bool
	Tag   uint64
	Dirty bool
	age   uint64
}

// Victim describes the line evicted by an Insert, if any.
type Victim struct {
	Addr  uint64
	Dirty bool
	Valid bool
}

// Cache is a fixed-size set-associative cache.
type Cache struct {
	sets       [][]Line
	lineSize   int
	numSets    int
	offsetBits bits.Index
	clock      uint64
}

// New builds a cache of numSets ways-way sets, each line lineSize bytes
// (numSets * ways lines total). numSets is the cache's set count
// directly, matching the original's cache_c(name, num_set, assoc,
// line_size, ...) constructor -- config.GPUParams.L{1,2}CacheSize is this
// same set count (see DESIGN.md, "Cache size config field is a set
// count").
func New(numSets, ways, lineSize int) *Cache {
	if ways <= 0 {
		ways = 1
	}
	if numSets <= 0 {
		numSets = 1
	}
	sets := make([][]Line, numSets)
	for i := range sets {
		sets[i] = make([]Line, ways)
	}
	return &Cache{
		sets:       sets,
		lineSize:   lineSize,
		numSets:    numSets,
		offsetBits: bits.Log2(lineSize),
	}
}

// FindTagAndSet computes the (tag, set) pair addr decomposes into, without
// touching the cache. Used by CCWS to probe the VTA with the same tag the
// cache would use.
func (c *Cache) FindTagAndSet(addr uint64) (tag uint64, set int) {
	block := addr >> c.offsetBits
	set = int(block % uint64(c.numSets))
	tag = block / uint64(c.numSets)
	return tag, set
}

// Access looks up addr. On hit it refreshes the line's LRU age and returns
// a pointer the caller may mutate (e.g. to set Dirty).
func (c *Cache) Access(addr uint64) (line *Line, hit bool) {
	tag, set := c.FindTagAndSet(addr)
	c.clock++
	for i := range c.sets[set] {
		l := &c.sets[set][i]
		if l.Valid && l.Tag == tag {
			l.age = c.clock
			return l, true
		}
	}
	return nil, false
}

// Insert installs addr's line, evicting the set's least-recently-used way
// (ties broken by lowest way index). Returns the newly installed line and
// the evicted line's address, if one was valid.
func (c *Cache) Insert(addr uint64) (line *Line, victim Victim) {
	tag, set := c.FindTagAndSet(addr)
	c.clock++

	victimWay := 0
	for i := 1; i < len(c.sets[set]); i++ {
		if c.sets[set][i].age < c.sets[set][victimWay].age {
			victimWay = i
		}
	}

	old := c.sets[set][victimWay]
	if old.Valid {
		victim = Victim{Addr: c.blockAddr(old.Tag, set), Dirty: old.Dirty, Valid: true}
	}

	c.sets[set][victimWay] = Line{Valid: true, Tag: tag, age: c.clock}
	return &c.sets[set][victimWay], victim
}

func (c *Cache) blockAddr(tag uint64, set int) uint64 {
	block := tag*uint64(c.numSets) + uint64(set)
	return block << c.offsetBits
}
