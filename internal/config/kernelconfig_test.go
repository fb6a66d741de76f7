package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunIndexExplicitCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("gpgpusim 14 2 kernel0_config.txt kernel1_config.txt extra_ignored_token.txt"), 0o644))

	idx, err := ParseRunIndex(path)
	require.NoError(t, err)
	assert.Equal(t, "gpgpusim", idx.TraceType)
	assert.Equal(t, TraceVersion, idx.Version)
	assert.Equal(t, []string{"kernel0_config.txt", "kernel1_config.txt"}, idx.KernelPaths)
}

func TestParseRunIndexSentinelCountTakesEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("gpgpusim 14 -1 kernel0_config.txt kernel1_config.txt"), 0o644))

	idx, err := ParseRunIndex(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kernel0_config.txt", "kernel1_config.txt"}, idx.KernelPaths)
}

func TestParseRunIndexRejectsBadVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("gpgpusim 9 -1 kernel0_config.txt"), 0o644))

	_, err := ParseRunIndex(path)
	assert.Error(t, err)
}

func TestParseKernelConfigAndPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel0_config.txt")
	contents := "gpgpusim 14 4 2\n" +
		"0 0\n" +
		"1 10\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	kc, err := ParseKernelConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpgpusim", kc.TraceType)
	assert.Equal(t, TraceVersion, kc.Version)
	assert.Equal(t, 4, kc.MaxBlockPerCore)
	require.Len(t, kc.Warps, 2)
	assert.Equal(t, WarpEntry{WarpID: 0}, kc.Warps[0])
	assert.Equal(t, WarpEntry{WarpID: 1}, kc.Warps[1])

	assert.Equal(t, filepath.Join(dir, "kernel0_1.raw"), kc.TracePath(1))
	assert.Equal(t, filepath.Join(dir, "kernel0_info.txt"), kc.InfoPath())
}

func TestParseKernelConfigRejectsShortWarpTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel0_config.txt")
	require.NoError(t, os.WriteFile(path, []byte("gpgpusim 14 4 2\n0 0\n"), 0o644))

	_, err := ParseKernelConfig(path)
	assert.Error(t, err)
}

func TestParseInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel0_info.txt")
	require.NoError(t, os.WriteFile(path, []byte("0 100\n1 250\n"), 0o644))

	entries, err := ParseInfo(path)
	require.NoError(t, err)
	assert.Equal(t, []InfoEntry{
		{WarpID: 0, InstCount: 100},
		{WarpID: 1, InstCount: 250},
	}, entries)
}
