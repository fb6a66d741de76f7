// Package core implements a single GPU core's per-cycle tick: warp
// scheduling, the memory access path through its private L1 and the
// shared L2, and the bookkeeping CCWS needs to throttle warps that thrash
// the cache.
//
// Grounded on original_source/.../core.cpp's run_a_cycle, in the shape of
// the teacher's own cpu.tick() step loop.
package core

import (
	"github.com/macsim/macsim/internal/sim/cache"
	"github.com/macsim/macsim/internal/sim/trace"
	"github.com/macsim/macsim/internal/sim/warp"
)

// CCWSKThrottle scales the victim-tag-array hit count in the CCWS feedback
// formula. Matches CCWS_LLS_K_THROTTLE in the original.
const CCWSKThrottle = 64

// DefaultDeadlockCycleThreshold is the safety-valve cycle count at which a
// core that never retires is forcibly retired anyway.
const DefaultDeadlockCycleThreshold = 5_000_000_000

// MemRequest describes an off-chip memory access to be enqueued on the
// shared memory FIFO and tracked in the scoreboard.
type MemRequest struct {
	Address    uint64
	IsStore    bool
	AccessSize uint8
	CoreID     int
	WarpID     uint32
	InsertInL1 bool
	MarkDirty  bool
}

// MemoryPort is how a core reaches the simulator's shared memory path
// without importing the simulator package (which in turn owns the core).
type MemoryPort interface {
	EnqueueRequest(req MemRequest)
}

// BlockSource supplies new warps to a core from the block dispatcher.
// Implemented by internal/sim/dispatch.Dispatcher.
type BlockSource interface {
	// DispatchWarps fills c.Dispatched with newly admitted warps, up to
	// the core's warp capacity, and returns how many were added.
	DispatchWarps(c *Core) int
}

// Scheduler selects (and removes) the next warp to run from a core's
// dispatched queue. Implemented by internal/sim/schedule.
type Scheduler interface {
	Select(c *Core) (*warp.Warp, bool)
}

// MaxWarpsPerCore is a fixed engine constant, independent of the
// configured MaxBlockPerCore (original_source/.../macsim.h's
// c_max_running_warp_num).
const MaxWarpsPerCore = 4

// Core is a single GPU core's complete simulation state.
type Core struct {
	ID    int
	Cycle uint64

	L1          *cache.Cache
	L2          *cache.Cache
	EnableCache bool

	Dispatched []*warp.Warp
	Suspended  map[uint32]*warp.Warp
	Running    *warp.Warp

	// MemoryResponses is this core's inbox, filled by the simulator
	// before Tick runs each cycle.
	MemoryResponses []uint32

	FetchingBlockID   int
	RunningBlockCount int

	// RetiredInstructions is seeded at 1, not 0, so the CCWS feedback
	// formula's divisor never needs a runtime zero-check.
	RetiredInstructions uint64
	StallCycles         uint64
	vtaHits             uint64

	// CacheAccesses/CacheHits count every L1 or L2 probe this core issues,
	// read by the simulator each tick to feed the combined hit-rate
	// statistic.
	CacheAccesses uint64
	CacheHits     uint64

	Retired bool

	// GTOLastWarpID/GTOHasLastWarp are per-core state for the GTO
	// scheduler. The original keeps this as a function-local static
	// keyed by core ID, which hides ownership; here it lives on the
	// core it belongs to.
	GTOLastWarpID  uint32
	GTOHasLastWarp bool

	TracePrefetchDepth     int
	DeadlockCycleThreshold uint64

	Scheduler  Scheduler
	Blocks     BlockSource
	MemoryPort MemoryPort
}

// New creates a core with the given ID, attached caches, and collaborators.
func New(id int, l1, l2 *cache.Cache, enableCache bool, sched Scheduler, blocks BlockSource, mem MemoryPort) *Core {
	return &Core{
		ID:                     id,
		L1:                     l1,
		L2:                     l2,
		EnableCache:            enableCache,
		Suspended:              make(map[uint32]*warp.Warp),
		FetchingBlockID:        -1,
		RetiredInstructions:    1,
		TracePrefetchDepth:     warp.DefaultPrefetchDepth,
		DeadlockCycleThreshold: DefaultDeadlockCycleThreshold,
		Scheduler:              sched,
		Blocks:                 blocks,
		MemoryPort:             mem,
	}
}

// RunningWarpCount returns how many warps this core currently owns, across
// all three containers (dispatched, suspended, running).
func (c *Core) RunningWarpCount() int {
	n := len(c.Dispatched) + len(c.Suspended)
	if c.Running != nil {
		n++
	}
	return n
}

// RemoveDispatched splices w out of the dispatched queue, preserving the
// order of the remaining warps. Used by schedulers that pick a warp other
// than the front of the queue.
func (c *Core) RemoveDispatched(w *warp.Warp) bool {
	for i, d := range c.Dispatched {
		if d == w {
			c.Dispatched = append(c.Dispatched[:i], c.Dispatched[i+1:]...)
			return true
		}
	}
	return false
}

// Tick advances the core by one cycle: score decay, response drain,
// parking the running warp, refilling from the dispatcher, scheduling,
// trace refill, and executing one instruction.
func (c *Core) Tick() {
	if c.Retired {
		return
	}
	c.Cycle++
	if c.Cycle > c.DeadlockCycleThreshold {
		c.Retired = true
		return
	}

	c.decayScores()
	c.drainResponses()

	if c.Running != nil {
		c.Dispatched = append(c.Dispatched, c.Running)
		c.Running = nil
	}

	if len(c.Dispatched) == 0 {
		c.Blocks.DispatchWarps(c)
		if len(c.Dispatched) == 0 && len(c.Suspended) == 0 {
			c.Retired = true
			return
		}
	}

	w, ok := c.Scheduler.Select(c)
	if !ok {
		c.StallCycles++
		return
	}
	c.Running = w

	if _, ok := w.Peek(); !ok {
		n, _ := w.Refill(c.TracePrefetchDepth)
		if n == 0 {
			w.Close()
			c.Running = nil
			return
		}
	}

	rec, ok := w.Peek()
	if !ok {
		return
	}

	if (rec.Opcode.IsLoad() || rec.Opcode.IsStore()) && !rec.Opcode.IsSharedMemory() {
		if c.dispatchMemoryAccess(w, rec) {
			c.Suspended[w.WarpID] = w
			c.Running = nil
			return
		}
	}
	w.Pop()
	c.RetiredInstructions++
}

func (c *Core) decayScores() {
	decay := func(w *warp.Warp) {
		if w.CCWSScore > warp.CCWSBase {
			w.CCWSScore--
		}
	}
	if c.Running != nil {
		decay(c.Running)
	}
	for _, w := range c.Dispatched {
		decay(w)
	}
	for _, w := range c.Suspended {
		decay(w)
	}
}

func (c *Core) drainResponses() {
	for _, wid := range c.MemoryResponses {
		if w, ok := c.Suspended[wid]; ok {
			delete(c.Suspended, wid)
			c.Dispatched = append(c.Dispatched, w)
		}
	}
	c.MemoryResponses = c.MemoryResponses[:0]
}

// dispatchMemoryAccess runs the load/store memory path for rec, issued by
// w. It returns true if the warp must suspend awaiting an off-chip
// response.
func (c *Core) dispatchMemoryAccess(w *warp.Warp, rec trace.Record) bool {
	addr := rec.Address
	isStore := rec.Opcode.IsStore()

	if !c.EnableCache {
		c.MemoryPort.EnqueueRequest(MemRequest{
			Address: addr, IsStore: isStore, AccessSize: rec.AccessSize,
			CoreID: c.ID, WarpID: w.WarpID,
		})
		return true
	}

	if isStore {
		return c.store(w, addr, rec.AccessSize)
	}
	return c.load(w, addr, rec.AccessSize)
}

func (c *Core) load(w *warp.Warp, addr uint64, size uint8) (suspend bool) {
	if _, hit := c.recordAccess(c.L1.Access(addr)); hit {
		return false
	}
	c.onL1Miss(w, addr)

	if _, hit := c.recordAccess(c.L2.Access(addr)); hit {
		_, victim := c.L1.Insert(addr)
		c.repairVictim(w, victim)
		return false
	}

	c.MemoryPort.EnqueueRequest(MemRequest{
		Address: addr, IsStore: false, AccessSize: size,
		CoreID: c.ID, WarpID: w.WarpID, InsertInL1: true, MarkDirty: false,
	})
	return true
}

func (c *Core) store(w *warp.Warp, addr uint64, size uint8) (suspend bool) {
	if _, hit := c.recordAccess(c.L1.Access(addr)); !hit {
		c.onL1Miss(w, addr)
	}

	line, hit := c.recordAccess(c.L2.Access(addr))
	if hit {
		line.Dirty = true
		return false
	}

	c.MemoryPort.EnqueueRequest(MemRequest{
		Address: addr, IsStore: true, AccessSize: size,
		CoreID: c.ID, WarpID: w.WarpID, InsertInL1: false, MarkDirty: true,
	})
	return true
}

// recordAccess tallies one cache probe for the combined L1+L2 hit-rate
// statistic and passes its result through unchanged.
func (c *Core) recordAccess(line *cache.Line, hit bool) (*cache.Line, bool) {
	c.CacheAccesses++
	if hit {
		c.CacheHits++
	}
	return line, hit
}

// repairVictim feeds an L1 eviction's tag into the issuing warp's victim
// tag array, for the synchronous (L2-hit) insertion path.
func (c *Core) repairVictim(w *warp.Warp, victim cache.Victim) {
	if !victim.Valid {
		return
	}
	tag, _ := c.L1.FindTagAndSet(victim.Addr)
	w.VTA.Insert(tag)
}

// onL1Miss probes the issuing warp's VTA. Only a VTA hit raises the
// warp's CCWS score, per the feedback formula -- a VTA miss leaves the
// score untouched, as does a hit whose formula value is not above the
// current score; it is otherwise only ever lowered by per-cycle decay
// (see decayScores), never by this path. Always runs on an L1
// miss, independent of which scheduler is configured -- the VTA and
// score live on every warp regardless of policy.
func (c *Core) onL1Miss(w *warp.Warp, addr uint64) {
	tag, _ := c.L1.FindTagAndSet(addr)
	if !w.VTA.Access(tag, true) {
		return
	}
	c.vtaHits++

	cumCutoff := uint64(c.RunningWarpCount()) * warp.CCWSBase
	retired := c.RetiredInstructions
	if retired < 1 {
		retired = 1
	}
	newScore := (c.vtaHits * CCWSKThrottle * cumCutoff) / retired
	if newScore < warp.CCWSBase {
		newScore = warp.CCWSBase
	}
	if int(newScore) > w.CCWSScore {
		w.CCWSScore = int(newScore)
	}
}

// VTAHits returns the core's monotonically increasing victim-tag-array hit
// counter, used by the CCWS feedback formula.
func (c *Core) VTAHits() uint64 { return c.vtaHits }
