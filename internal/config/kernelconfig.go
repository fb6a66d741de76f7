package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TraceVersion is the only trace format version this simulator
// understands; original_source/.../macsim.cpp rejects anything else.
const TraceVersion = 14

// WarpEntry is one line of a per-kernel config file: a warp's ID. The
// second column (a starting instruction count) is parsed to keep the
// grammar but not kept on WarpEntry -- original_source/.../macsim.cpp
// reads it into warp_id_v's second tuple slot and never consults it
// again either.
type WarpEntry struct {
	WarpID uint32
}

// RunIndex is the top-level kernel-config file named by the CLI's -t
// flag: it names the per-kernel config files to load, in order, possibly
// repeated N_Repeat times by the caller.
type RunIndex struct {
	TraceType   string
	Version     int
	KernelPaths []string
}

// ParseRunIndex reads the top-level kernel-config file: trace type,
// version (must be TraceVersion), a kernel count (-1 meaning "read every
// remaining token as a kernel config path"), then the paths themselves.
func ParseRunIndex(path string) (RunIndex, error) {
	toks, err := tokenize(path)
	if err != nil {
		return RunIndex{}, err
	}
	if len(toks) < 3 {
		return RunIndex{}, fmt.Errorf("config: %s: too short to be a kernel index", path)
	}

	idx := RunIndex{TraceType: toks[0]}
	version, err := strconv.Atoi(toks[1])
	if err != nil {
		return RunIndex{}, fmt.Errorf("config: %s: bad trace version %q: %w", path, toks[1], err)
	}
	if version != TraceVersion {
		return RunIndex{}, fmt.Errorf("config: %s: unsupported trace version %d, want %d", path, version, TraceVersion)
	}
	idx.Version = version

	count, err := strconv.Atoi(toks[2])
	if err != nil {
		return RunIndex{}, fmt.Errorf("config: %s: bad kernel count %q: %w", path, toks[2], err)
	}

	rest := toks[3:]
	if count != -1 {
		if count > len(rest) {
			return RunIndex{}, fmt.Errorf("config: %s: declares %d kernels but only %d paths follow", path, count, len(rest))
		}
		rest = rest[:count]
	}
	idx.KernelPaths = rest
	return idx, nil
}

// KernelConfig is one kernel's own config file: trace type, version, the
// kernel-local max-blocks-per-core, and the warp table.
type KernelConfig struct {
	TraceType       string
	Version         int
	MaxBlockPerCore int
	Warps           []WarpEntry

	dir  string
	stem string
}

// ParseKernelConfig reads one kernel's config file (as named by a
// RunIndex entry).
func ParseKernelConfig(path string) (*KernelConfig, error) {
	toks, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	if len(toks) < 4 {
		return nil, fmt.Errorf("config: %s: too short to be a kernel config", path)
	}

	kc := &KernelConfig{
		TraceType: toks[0],
		dir:       filepath.Dir(path),
		stem:      strings.TrimSuffix(filepath.Base(path), "_config.txt"),
	}

	version, err := strconv.Atoi(toks[1])
	if err != nil {
		return nil, fmt.Errorf("config: %s: bad trace version %q: %w", path, toks[1], err)
	}
	if version != TraceVersion {
		return nil, fmt.Errorf("config: %s: unsupported trace version %d, want %d", path, version, TraceVersion)
	}
	kc.Version = version

	maxBlocks, err := strconv.Atoi(toks[2])
	if err != nil {
		return nil, fmt.Errorf("config: %s: bad max blocks per core %q: %w", path, toks[2], err)
	}
	kc.MaxBlockPerCore = maxBlocks

	warpCount, err := strconv.Atoi(toks[3])
	if err != nil {
		return nil, fmt.Errorf("config: %s: bad warp count %q: %w", path, toks[3], err)
	}

	rest := toks[4:]
	if len(rest) < warpCount*2 {
		return nil, fmt.Errorf("config: %s: declares %d warps but not enough fields follow", path, warpCount)
	}
	kc.Warps = make([]WarpEntry, warpCount)
	for i := 0; i < warpCount; i++ {
		id, err := strconv.ParseUint(rest[i*2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: %s: bad warp id %q: %w", path, rest[i*2], err)
		}
		if _, err := strconv.ParseUint(rest[i*2+1], 10, 64); err != nil {
			return nil, fmt.Errorf("config: %s: bad start inst count %q: %w", path, rest[i*2+1], err)
		}
		kc.Warps[i] = WarpEntry{WarpID: uint32(id)}
	}
	return kc, nil
}

// TracePath returns the gzip-compressed trace file path for warpID,
// resolved relative to this kernel config's own directory:
// "<kernel-stem>_<warp_id>.raw".
func (kc *KernelConfig) TracePath(warpID uint32) string {
	return filepath.Join(kc.dir, fmt.Sprintf("%s_%d.raw", kc.stem, warpID))
}

// InfoPath returns the sibling "<kernel-stem>_info.txt" path, which
// tabulates each warp's total instruction count.
func (kc *KernelConfig) InfoPath() string {
	return filepath.Join(kc.dir, kc.stem+"_info.txt")
}

// InfoEntry mirrors WarpEntry but for the info file's "warp_id
// inst_count" pairs.
type InfoEntry struct {
	WarpID    uint32
	InstCount uint64
}

// ParseInfo reads a kernel's "_info.txt" sibling file.
func ParseInfo(path string) ([]InfoEntry, error) {
	toks, err := tokenize(path)
	if err != nil {
		return nil, err
	}
	if len(toks)%2 != 0 {
		return nil, fmt.Errorf("config: %s: odd token count, expected warp_id/inst_count pairs", path)
	}
	entries := make([]InfoEntry, len(toks)/2)
	for i := range entries {
		id, err := strconv.ParseUint(toks[i*2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: %s: bad warp id %q: %w", path, toks[i*2], err)
		}
		count, err := strconv.ParseUint(toks[i*2+1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: %s: bad inst count %q: %w", path, toks[i*2+1], err)
		}
		entries[i] = InfoEntry{WarpID: uint32(id), InstCount: count}
	}
	return entries, nil
}

// tokenize splits a config file into whitespace-separated fields, the
// same grammar the teacher's cpu.LoadProgram parses hex bytes with. It
// scans line by line and concatenates each line's strings.Fields, so
// line breaks carry no meaning: these config files use newlines only for
// readability.
func tokenize(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var toks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		toks = append(toks, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return toks, nil
}
