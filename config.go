package mapreduce

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds the path defaults the coordinator uses for its working
// directories. It generalizes the teacher's package-level Config map
// (populated by an init() that fatally exited at import time if
// config.yaml was absent) into an explicit, optional load — a library
// must not abort on import just because a caller hasn't written a YAML
// file yet.
type Config struct {
	Paths map[string]string
}

// defaultPaths match the fixed names spec.md assigns to the coordinator's
// working-directory layout.
func defaultPaths() map[string]string {
	return map[string]string{
		"segments": "segments",
	}
}

// LoadConfig reads a YAML file shaped like:
//
//	paths:
//	  segments: segments
//
// A missing file is not an error: it yields DefaultConfig(), since
// spec.md names no required config file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	var parsed map[string]map[string]string
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}

	cfg := DefaultConfig()
	for k, v := range parsed["paths"] {
		cfg.Paths[k] = v
	}
	return cfg, nil
}

// DefaultConfig returns the built-in path defaults.
func DefaultConfig() *Config {
	return &Config{Paths: defaultPaths()}
}

// SegmentsDir returns the configured segments directory.
func (c *Config) SegmentsDir() string {
	if c == nil || c.Paths["segments"] == "" {
		return "segments"
	}
	return c.Paths["segments"]
}
