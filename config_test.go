package mapreduce

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "segments", cfg.SegmentsDir())
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "segments", cfg.SegmentsDir())
}

func TestLoadConfigOverridesSegmentsDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  segments: custom-segments\n"), 0666))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "custom-segments", cfg.SegmentsDir())
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [this is not a map"), 0666))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestSegmentsDirNilConfig(t *testing.T) {
	var cfg *Config
	require.Equal(t, "segments", cfg.SegmentsDir())
}
