// Package config parses the two on-disk configuration formats: the XML
// GPU parameter set and the text kernel-configuration file that names the
// per-warp trace files.
//
// Grounded on original_source/.../exec/GPU_Parameter_Set.cpp (XML shape
// and defaults) and .../macsim.cpp's trace_reader_setup (kernel config
// grammar).
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// BlockSchedulingPolicy names the block scheduler. Round-robin is the
// only one the original defines.
type BlockSchedulingPolicy string

// RoundRobinBlocks is the only recognized block scheduling policy.
const RoundRobinBlocks BlockSchedulingPolicy = "ROUND_ROBIN"

// WarpSchedulingPolicy names the warp scheduler.
type WarpSchedulingPolicy string

const (
	RoundRobinWarps WarpSchedulingPolicy = "ROUND_ROBIN"
	GTOWarps        WarpSchedulingPolicy = "GTO"
	CCWSWarps       WarpSchedulingPolicy = "CCWS"
)

// GPUParams is the full `<GPU_Parameter_Set>` XML document.
type GPUParams struct {
	XMLName xml.Name `xml:"GPU_Parameter_Set"`

	CyclePerPeriod        uint64                `xml:"Cycle_Per_Period"`
	NumOfCores            int                   `xml:"Num_Of_Cores"`
	MaxBlockPerCore       int                   `xml:"Max_Block_Per_Core"`
	BlockSchedulingPolicy BlockSchedulingPolicy `xml:"Block_Scheduling_Policy"`
	WarpSchedulingPolicy  WarpSchedulingPolicy  `xml:"Warp_Scheduling_Policy"`
	GPUTracePath          string                `xml:"GPU_Trace_Path"`
	NRepeat               int                   `xml:"N_Repeat"`
	EnableGPUCache        bool                  `xml:"Enable_GPU_Cache"`
	GPUCacheLog           bool                  `xml:"GPU_Cache_Log"`

	// L{1,2}CacheSize is the cache's set count (not a line or byte
	// count), passed straight through to cache.New -- see DESIGN.md,
	// "Cache size config field is a set count".
	L1CacheSize     int `xml:"L1Cache_Size"`
	L1CacheAssoc    int `xml:"L1Cache_Assoc"`
	L1CacheLineSize int `xml:"L1Cache_Line_Size"`
	L1CacheBanks    int `xml:"L1Cache_Banks"`

	L2CacheSize     int `xml:"L2Cache_Size"`
	L2CacheAssoc    int `xml:"L2Cache_Assoc"`
	L2CacheLineSize int `xml:"L2Cache_Line_Size"`
	L2CacheBanks    int `xml:"L2Cache_Banks"`
}

// Default returns the parameter set the original ships as its built-in
// defaults.
func Default() GPUParams {
	return GPUParams{
		XMLName:               xml.Name{Local: "GPU_Parameter_Set"},
		CyclePerPeriod:        10000,
		NumOfCores:            4,
		MaxBlockPerCore:       4,
		BlockSchedulingPolicy: RoundRobinBlocks,
		WarpSchedulingPolicy:  RoundRobinWarps,
		GPUTracePath:          "macsim_traces/backprop/8192/kernel_config.txt",
		NRepeat:               1,
		EnableGPUCache:        true,
		GPUCacheLog:           false,
		L1CacheSize:           8,
		L1CacheAssoc:          2,
		L1CacheLineSize:       64,
		L1CacheBanks:          1,
		L2CacheSize:           128,
		L2CacheAssoc:          8,
		L2CacheLineSize:       64,
		L2CacheBanks:          1,
	}
}

// DefaultXMLPath is where a freshly written default config lands when the
// caller did not name a path (main.cpp's xmls/gpuconfig_default.xml).
const DefaultXMLPath = "xmls/gpuconfig_default.xml"

// Load reads the GPU parameter XML at path. An empty path falls back to
// DefaultXMLPath. A missing or malformed file is not fatal: the defaults
// are written to that path (so a future run has something to edit) and
// returned. An unrecognized scheduling policy name IS fatal, per
// SPEC_FULL.md §6.
func Load(path string, log *logrus.Logger) (GPUParams, error) {
	if path == "" {
		path = DefaultXMLPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("config: gpu parameter file unreadable, writing defaults")
		return writeDefault(path, log)
	}

	var p GPUParams
	if err := xml.Unmarshal(data, &p); err != nil {
		log.WithError(err).WithField("path", path).Warn("config: gpu parameter file malformed, writing defaults")
		return writeDefault(path, log)
	}

	if err := validatePolicies(p); err != nil {
		return GPUParams{}, err
	}
	return p, nil
}

func writeDefault(path string, log *logrus.Logger) (GPUParams, error) {
	p := Default()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.WithError(err).Warn("config: could not create directory for default gpu parameter file")
		return p, nil
	}
	data, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return p, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.WithError(err).Warn("config: could not write default gpu parameter file")
	}
	return p, nil
}

func validatePolicies(p GPUParams) error {
	switch p.BlockSchedulingPolicy {
	case RoundRobinBlocks:
	default:
		return fmt.Errorf("config: unknown block scheduling policy %q", p.BlockSchedulingPolicy)
	}
	switch p.WarpSchedulingPolicy {
	case RoundRobinWarps, GTOWarps, CCWSWarps:
	default:
		return fmt.Errorf("config: unknown warp scheduling policy %q", p.WarpSchedulingPolicy)
	}
	return nil
}
