// Package simulator owns everything a single cache or core does not:
// the shared L2, the off-chip memory FIFO, the scoreboard bridging
// requests back to warps, the block dispatcher, and the global cycle
// tick that drives all of it in a fixed order.
//
// Grounded on original_source/.../macsim.cpp's run_a_cycle/get_mem_response
// and ram.cpp's tick, generalized from the teacher's single-stepped
// cpu.tick() loop shape.
package simulator

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/macsim/macsim/internal/config"
	"github.com/macsim/macsim/internal/sim/cache"
	"github.com/macsim/macsim/internal/sim/core"
	"github.com/macsim/macsim/internal/sim/dispatch"
	"github.com/macsim/macsim/internal/sim/memory"
	"github.com/macsim/macsim/internal/sim/schedule"
	"github.com/macsim/macsim/internal/sim/scoreboard"
	"github.com/macsim/macsim/internal/sim/stats"
)

// TimeoutSweepPeriod is how often (in global cycles) the scoreboard is
// swept for requests that never came back.
const TimeoutSweepPeriod = 100_000

// MinResponsesBeforeTimeouts gates the sweep until the running-average
// latency estimate is meaningful.
const MinResponsesBeforeTimeouts = 2000

// TimeoutLatencyMultiple is how many multiples of the running-average
// response latency an outstanding request may exceed before it is
// synthesized a response.
const TimeoutLatencyMultiple = 1000

// Simulator is the top-level owner of every shared resource and the
// driver of the global cycle tick.
type Simulator struct {
	Cores      []*core.Core
	L2         *cache.Cache
	Memory     *memory.Memory
	Scoreboard *scoreboard.Scoreboard
	Dispatcher *dispatch.Dispatcher
	Stats      *stats.Stats
	Log        *logrus.Logger

	cycle           uint64
	nextRequestID   uint64
	nextBlockOffset int
}

// New builds a simulator wired per the GPU parameter set: one core per
// config.NumOfCores, each with its own L1, all sharing one L2, one
// memory FIFO, and a warp scheduler chosen by
// config.WarpSchedulingPolicy.
func New(p config.GPUParams, log *logrus.Logger) (*Simulator, error) {
	sched, err := schedulerFor(p.WarpSchedulingPolicy)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		L2:         cache.New(p.L2CacheSize, p.L2CacheAssoc, p.L2CacheLineSize),
		Memory:     memory.New(memory.DefaultLatency),
		Scoreboard: scoreboard.New(),
		Dispatcher: dispatch.New(p.MaxBlockPerCore),
		Stats:      stats.New(),
		Log:        log,
	}
	s.Dispatcher.Log = log

	s.Cores = make([]*core.Core, p.NumOfCores)
	for i := range s.Cores {
		l1 := cache.New(p.L1CacheSize, p.L1CacheAssoc, p.L1CacheLineSize)
		s.Cores[i] = core.New(i, l1, s.L2, p.EnableGPUCache, sched, s.Dispatcher, s)
	}
	return s, nil
}

func schedulerFor(policy config.WarpSchedulingPolicy) (core.Scheduler, error) {
	switch policy {
	case config.RoundRobinWarps:
		return schedule.RoundRobin{}, nil
	case config.GTOWarps:
		return schedule.GTO{}, nil
	case config.CCWSWarps:
		return schedule.CCWS{}, nil
	default:
		return nil, fmt.Errorf("simulator: unknown warp scheduling policy %q", policy)
	}
}

// LoadKernel registers a kernel's warps with the dispatcher, encoding
// block IDs so they stay globally unique across every kernel loaded so
// far (see DESIGN.md, "Block ID cross-kernel uniqueness").
func (s *Simulator) LoadKernel(specs []dispatch.WarpSpec) {
	s.nextBlockOffset = s.Dispatcher.LoadKernel(specs, s.nextBlockOffset)
}

// EnqueueRequest implements core.MemoryPort: every off-chip access a core
// issues lands here, gets a scoreboard entry, and joins the memory FIFO.
func (s *Simulator) EnqueueRequest(req core.MemRequest) {
	id := s.nextRequestID
	s.nextRequestID++

	s.Scoreboard.Add(scoreboard.Entry{
		RequestID:   id,
		Address:     req.Address,
		RequestTime: s.cycle,
		CoreID:      req.CoreID,
		WarpID:      req.WarpID,
		InsertInL1:  req.InsertInL1,
		MarkDirty:   req.MarkDirty,
	})
	s.Memory.Enqueue(memory.Request{
		ID:        id,
		Address:   req.Address,
		IsStore:   req.IsStore,
		IssueTime: s.cycle,
	})
	s.Stats.AddMemRequest()
}

// Done reports whether every core has retired and every block has
// retired -- the run is complete.
func (s *Simulator) Done() bool {
	if !s.Dispatcher.Done() {
		return false
	}
	for _, c := range s.Cores {
		if !c.Retired {
			return false
		}
	}
	return true
}

// Cycle returns the simulator's global cycle count.
func (s *Simulator) Cycle() uint64 { return s.cycle }

// Run advances the simulator until Done reports true (every core and every
// block with warps has retired) or maxCycles is reached (0 means
// unbounded).
func (s *Simulator) Run(maxCycles uint64) {
	for !s.Done() {
		if maxCycles > 0 && s.cycle >= maxCycles {
			return
		}
		s.Tick()
	}
}

// Tick advances the global cycle by one: ticks every non-retired core in
// ID order, services the memory FIFO, applies response repair, and
// periodically sweeps for timed-out requests.
func (s *Simulator) Tick() {
	for _, c := range s.Cores {
		if c.Retired {
			continue
		}
		retiredBefore, stallBefore := c.RetiredInstructions, c.StallCycles
		accessesBefore, hitsBefore := c.CacheAccesses, c.CacheHits

		c.Tick()

		if d := c.RetiredInstructions - retiredBefore; d > 0 {
			s.Stats.AddRetiredInstructions(d)
		}
		if c.StallCycles > stallBefore {
			s.Stats.AddStallCycle()
		}
		accessDelta := c.CacheAccesses - accessesBefore
		hitDelta := c.CacheHits - hitsBefore
		for i := uint64(0); i < hitDelta; i++ {
			s.Stats.AddCacheAccess(true)
		}
		for i := uint64(0); i < accessDelta-hitDelta; i++ {
			s.Stats.AddCacheAccess(false)
		}
	}

	s.processMemory()

	s.cycle++
	s.Stats.AddCycle()

	if s.cycle%TimeoutSweepPeriod == 0 {
		s.sweepTimeouts()
	}
}

// processMemory advances the memory FIFO by one cycle and, if it served
// a request this cycle, applies the response repair described in
// SPEC_FULL.md §4.8.
func (s *Simulator) processMemory() {
	req, ok := s.Memory.Tick()
	if !ok {
		return
	}
	entry, found := s.Scoreboard.Take(req.ID)
	if !found {
		// A writeback we enqueued ourselves on an L2 eviction: no warp is
		// waiting on it, nothing further to repair.
		return
	}
	s.completeRequest(entry)
}

// completeRequest installs the response's line in L2 (issuing a
// writeback if it evicts a dirty victim), optionally repairs L1 and the
// issuing warp's VTA, and wakes the warp.
func (s *Simulator) completeRequest(e scoreboard.Entry) {
	line, victim := s.L2.Insert(e.Address)
	if victim.Valid && victim.Dirty {
		s.Memory.Enqueue(memory.Request{
			ID:        s.nextRequestID,
			Address:   victim.Addr,
			IsStore:   true,
			IssueTime: s.cycle,
		})
		s.nextRequestID++
		s.Stats.AddWriteback()
	}
	line.Dirty = e.MarkDirty

	if e.CoreID < 0 || e.CoreID >= len(s.Cores) {
		return
	}
	c := s.Cores[e.CoreID]

	if e.InsertInL1 {
		_, l1Victim := c.L1.Insert(e.Address)
		if l1Victim.Valid {
			if w, ok := c.Suspended[e.WarpID]; ok {
				tag, _ := c.L1.FindTagAndSet(l1Victim.Addr)
				w.VTA.Insert(tag)
			}
		}
	}

	c.MemoryResponses = append(c.MemoryResponses, e.WarpID)
	s.Stats.AddMemResponse(s.cycle - e.RequestTime)
}

// sweepTimeouts synthesizes a response for any scoreboard entry that has
// outstanding far longer than the observed average latency, once enough
// responses have been seen for that average to mean anything.
func (s *Simulator) sweepTimeouts() {
	snap := s.Stats.Snapshot()
	if snap.MemResponses < MinResponsesBeforeTimeouts {
		return
	}
	maxAge := uint64(snap.AvgResponseLatency() * TimeoutLatencyMultiple)
	if maxAge == 0 {
		return
	}
	for _, e := range s.Scoreboard.SweepTimeouts(s.cycle, maxAge) {
		s.synthesizeTimeout(e)
	}
}

func (s *Simulator) synthesizeTimeout(e scoreboard.Entry) {
	s.Log.WithFields(logrus.Fields{
		"request_id": e.RequestID,
		"core_id":    e.CoreID,
		"warp_id":    e.WarpID,
		"age":        s.cycle - e.RequestTime,
	}).Warn("simulator: memory request timed out, synthesizing response")

	if e.CoreID >= 0 && e.CoreID < len(s.Cores) {
		s.Cores[e.CoreID].MemoryResponses = append(s.Cores[e.CoreID].MemoryResponses, e.WarpID)
	}
	s.Stats.AddTimedOutRequest()
}
