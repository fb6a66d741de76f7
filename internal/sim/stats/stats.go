// Package stats accumulates simulation counters and exposes them both as
// a plain snapshot (for the end-of-run text report, grounded on
// original_source/.../macsim.cpp's print_stats) and, optionally, as
// Prometheus gauges (an ambient addition grounded on
// runZeroInc-sockstats's client_golang usage).
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time copy of every counter, safe to read without
// holding the Stats lock.
type Snapshot struct {
	Cycles               uint64
	InstrsRetired        uint64
	StallCycles          uint64
	MemRequests          uint64
	Writebacks           uint64
	MemResponses         uint64
	TotalResponseLatency uint64
	TimedOutRequests     uint64

	CacheAccesses uint64
	CacheHits     uint64
}

// InstrPerCycle returns retired-instructions-per-cycle, 0 if no cycles
// have elapsed.
func (s Snapshot) InstrPerCycle() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.InstrsRetired) / float64(s.Cycles)
}

// AvgResponseLatency returns the mean memory response latency, 0 if no
// responses have been observed.
func (s Snapshot) AvgResponseLatency() float64 {
	if s.MemResponses == 0 {
		return 0
	}
	return float64(s.TotalResponseLatency) / float64(s.MemResponses)
}

// CacheHitRatePercent returns the cache hit rate as a percentage, 0 if no
// accesses have been observed.
func (s Snapshot) CacheHitRatePercent() float64 {
	if s.CacheAccesses == 0 {
		return 0
	}
	return 100 * float64(s.CacheHits) / float64(s.CacheAccesses)
}

// MissesPer1000Instr returns cache misses per thousand retired
// instructions, 0 if none have retired.
func (s Snapshot) MissesPer1000Instr() float64 {
	if s.InstrsRetired == 0 {
		return 0
	}
	misses := s.CacheAccesses - s.CacheHits
	return 1000 * float64(misses) / float64(s.InstrsRetired)
}

// Stats is the mutex-guarded counter set the simulation loop updates every
// cycle and the optional metrics server reads snapshots of. This is the
// one explicitly synchronized hand-off point between the two goroutines
// cmd/macsim may run (see SPEC_FULL.md §5, "Ambient concurrency").
type Stats struct {
	mu   sync.Mutex
	snap Snapshot
}

// New returns a zeroed counter set.
func New() *Stats { return &Stats{} }

// AddCycle records one elapsed global cycle.
func (s *Stats) AddCycle() {
	s.mu.Lock()
	s.snap.Cycles++
	s.mu.Unlock()
}

// AddRetiredInstructions records n instructions retiring this cycle.
func (s *Stats) AddRetiredInstructions(n uint64) {
	s.mu.Lock()
	s.snap.InstrsRetired += n
	s.mu.Unlock()
}

// AddStallCycle records one core-cycle lost to a scheduler stall.
func (s *Stats) AddStallCycle() {
	s.mu.Lock()
	s.snap.StallCycles++
	s.mu.Unlock()
}

// AddMemRequest records one off-chip memory request issued.
func (s *Stats) AddMemRequest() {
	s.mu.Lock()
	s.snap.MemRequests++
	s.mu.Unlock()
}

// AddWriteback records one dirty-eviction writeback enqueued onto the
// memory FIFO. It also counts toward MemRequests, matching
// spec.md §8 scenario 3's accounting ("two misses plus one writeback" is
// three total memory requests): a writeback is real FIFO traffic, just
// one with no warp waiting on its response.
func (s *Stats) AddWriteback() {
	s.mu.Lock()
	s.snap.MemRequests++
	s.snap.Writebacks++
	s.mu.Unlock()
}

// AddMemResponse records one off-chip memory response serviced, with its
// observed latency in cycles.
func (s *Stats) AddMemResponse(latency uint64) {
	s.mu.Lock()
	s.snap.MemResponses++
	s.snap.TotalResponseLatency += latency
	s.mu.Unlock()
}

// AddTimedOutRequest records one request synthesized by the timeout
// sweep.
func (s *Stats) AddTimedOutRequest() {
	s.mu.Lock()
	s.snap.TimedOutRequests++
	s.mu.Unlock()
}

// AddCacheAccess records one cache probe and whether it hit.
func (s *Stats) AddCacheAccess(hit bool) {
	s.mu.Lock()
	s.snap.CacheAccesses++
	if hit {
		s.snap.CacheHits++
	}
	s.mu.Unlock()
}

// Snapshot returns a consistent point-in-time copy of every counter.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Collector adapts Stats to prometheus.Collector, exposing every counter
// as a gauge (the simulator does not run long enough, nor restart enough,
// to need prometheus's own counter-reset semantics).
type Collector struct {
	stats *Stats
}

// NewCollector wraps stats for registration with a prometheus.Registerer.
func NewCollector(stats *Stats) *Collector {
	return &Collector{stats: stats}
}

var descriptors = []*prometheus.Desc{
	prometheus.NewDesc("macsim_cycles_total", "Elapsed simulation cycles.", nil, nil),
	prometheus.NewDesc("macsim_instructions_retired_total", "Retired instructions across all cores.", nil, nil),
	prometheus.NewDesc("macsim_stall_cycles_total", "Cycles lost to scheduler stalls across all cores.", nil, nil),
	prometheus.NewDesc("macsim_mem_requests_total", "Off-chip memory requests issued, including writebacks.", nil, nil),
	prometheus.NewDesc("macsim_mem_writebacks_total", "Dirty-eviction writebacks enqueued onto the memory FIFO.", nil, nil),
	prometheus.NewDesc("macsim_mem_responses_total", "Off-chip memory responses serviced.", nil, nil),
	prometheus.NewDesc("macsim_mem_avg_latency_cycles", "Mean off-chip memory response latency.", nil, nil),
	prometheus.NewDesc("macsim_mem_timed_out_requests_total", "Requests synthesized by the timeout sweep.", nil, nil),
	prometheus.NewDesc("macsim_instructions_per_cycle", "Retired instructions per elapsed cycle.", nil, nil),
	prometheus.NewDesc("macsim_cache_hit_rate_percent", "Combined L1+L2 cache hit rate.", nil, nil),
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats.Snapshot()
	values := []float64{
		float64(snap.Cycles),
		float64(snap.InstrsRetired),
		float64(snap.StallCycles),
		float64(snap.MemRequests),
		float64(snap.Writebacks),
		float64(snap.MemResponses),
		snap.AvgResponseLatency(),
		float64(snap.TimedOutRequests),
		snap.InstrPerCycle(),
		snap.CacheHitRatePercent(),
	}
	for i, d := range descriptors {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, values[i])
	}
}
