// Package config holds the node configuration shared by the CLI and the
// transport layer, its defaults, and a file watcher for live reload.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default endpoints and tunables shared by the CLI and the node runtime.
const (
	// DefaultListenAddr is the address a node serves on.
	DefaultListenAddr = "127.0.0.1:9559"
	// DefaultCallTimeout is the CallTimeout of the default configuration.
	DefaultCallTimeout = 30 * time.Second
)

// NodeConfig configures one qi node.
type NodeConfig struct {
	// Name identifies the node towards the directory.
	Name string `yaml:"name"`
	// ListenAddr is the websocket listen address.
	ListenAddr string `yaml:"listen_addr"`
	// DirectoryURL points at the service directory; empty means the
	// in-memory directory.
	DirectoryURL string `yaml:"directory_url"`
	// CallTimeout is read from call_timeout and must not be negative. The
	// transport client does not apply it and sets no deadline on outgoing
	// calls.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// StrictAuto is read from strict_auto. The node does not apply it to the
	// services it hosts; the refusing mode for Auto calls on objects without
	// an event loop is switched per object or type with SetStrictAuto.
	StrictAuto bool `yaml:"strict_auto"`

	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TracingConfig toggles OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultNodeConfig returns the configuration a node runs with when no
// file is given.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Name:        "qi-node",
		ListenAddr:  DefaultListenAddr,
		CallTimeout: DefaultCallTimeout,
		Metrics:     MetricsConfig{Addr: "127.0.0.1:9560"},
		Tracing:     TracingConfig{ExporterType: "stdout", SamplingRate: 1.0},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load parses a YAML config file over the defaults.
func Load(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations a node cannot start with.
func (c NodeConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config: node name cannot be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr cannot be empty")
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("config: call_timeout cannot be negative")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("config: tracing sampling_rate must be within [0,1]")
	}
	return nil
}
