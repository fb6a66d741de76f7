// Package vta implements the victim tag array used by CCWS feedback:
// a small fully-associative shadow tag store that remembers cache lines a
// warp recently lost, so the scheduler can tell "working set" misses from
// "interference" misses.
//
// Grounded on original_source/.../ccws_vta.cpp.
package vta

// Assoc is the number of entries in every victim tag array.
const Assoc = 8

type entry struct {
	valid bool
	tag   uint64
	lru   uint64
}

// VTA is a per-warp victim tag array.
type VTA struct {
	entries [Assoc]entry
	clock   uint64
}

// New returns a fresh, empty victim tag array. The clock starts at 10,
// matching the original implementation (an arbitrary non-zero seed so a
// never-touched entry's zero-valued lru always loses ties against a
// genuinely inserted one).
func New() *VTA {
	return &VTA{clock: 10}
}

// Access reports whether tag is present. When update is true (the normal
// case; callers pass false only to peek without disturbing recency), a hit
// refreshes the entry's timestamp. The clock always advances, hit or miss.
func (v *VTA) Access(tag uint64, update bool) (hit bool) {
	v.clock++
	for i := range v.entries {
		e := &v.entries[i]
		if e.valid && e.tag == tag {
			if update {
				e.lru = v.clock
			}
			return true
		}
	}
	return false
}

// Insert records tag as a fresh victim, evicting whichever entry has the
// smallest lru timestamp (ties keep the lowest index, i.e. the first one
// found).
func (v *VTA) Insert(tag uint64) {
	v.clock++
	victim := 0
	for i := 1; i < len(v.entries); i++ {
		if v.entries[i].lru < v.entries[victim].lru {
			victim = i
		}
	}
	v.entries[victim] = entry{valid: true, tag: tag, lru: v.clock}
}
