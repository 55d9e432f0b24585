// Package config loads node configuration from an optional YAML file.
// Command-line flags override anything set here; the file exists so a
// fleet of nodes can share one policy document.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ntua-el20059/Chordify/internal/chord"
)

// Config carries everything a node needs at startup. The consistency
// and replication settings only matter on the bootstrap — joiners
// receive the ring policy in the join response.
type Config struct {
	// Port is the preferred listen port. Zero lets the OS choose.
	// The bootstrap ignores this and binds its fixed port.
	Port int `yaml:"port"`

	// DataDir is where the shard's WAL and snapshots live. Empty
	// keeps the shard in memory only.
	DataDir string `yaml:"data_dir"`

	// HTTPAddr enables the gin admin surface when non-empty,
	// e.g. ":8080".
	HTTPAddr string `yaml:"http_addr"`

	Consistency       string `yaml:"consistency"`
	ReplicationFactor int    `yaml:"replication_factor"`
}

// Default returns the configuration a bare node starts with.
func Default() Config {
	return Config{
		Consistency:       chord.ConsistencyLinearizable,
		ReplicationFactor: 1,
	}
}

// Load reads and validates a YAML config file, layered over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the ring cannot run with.
func (c Config) Validate() error {
	switch c.Consistency {
	case chord.ConsistencyLinearizable, chord.ConsistencyEventual:
	default:
		return fmt.Errorf("unknown consistency type %q", c.Consistency)
	}
	if c.ReplicationFactor < 1 {
		return fmt.Errorf("replication factor must be positive, got %d", c.ReplicationFactor)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}
