package config

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel) // quiet during tests
	return l
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuconfig.xml")

	p, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	data, err := os.ReadFile(path)
	require.NoError(t, err, "default config must have been written to disk")
	var reloaded GPUParams
	require.NoError(t, xml.Unmarshal(data, &reloaded))
	assert.Equal(t, Default(), reloaded)
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuconfig.xml")
	require.NoError(t, os.WriteFile(path, []byte("not xml"), 0o644))

	p, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadRejectsUnknownSchedulingPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuconfig.xml")
	p := Default()
	p.WarpSchedulingPolicy = "MADE_UP"
	data, err := xml.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load(path, testLogger())
	assert.Error(t, err)
}

func TestLoadRoundTripsValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuconfig.xml")
	want := Default()
	want.NumOfCores = 8
	want.WarpSchedulingPolicy = CCWSWarps
	data, err := xml.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
