// Package config holds the YAML configuration model for the PLC simulator:
// the server block (endpoint, namespace, tick cadence) and the variable model
// that drives address-space construction and simulation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint     = "opc.tcp://0.0.0.0:4840"
	DefaultNamespaceURI = "urn:homeassistant:opcua:plc-simulator"
	DefaultTickMS       = 1000
	DefaultRoot         = "Machine"

	DefaultTCPListenAddr = "127.0.0.1:4850"
	DefaultSerialPort    = "COM5"
)

// ServerConfig is the `server:` block.
type ServerConfig struct {
	Endpoint     string `yaml:"endpoint"`
	NamespaceURI string `yaml:"namespace_uri"`
	TickMS       int    `yaml:"tick_ms"`
}

// Model is the `model:` block. Variables is kept as a raw yaml.Node so the
// loader can tell a structurally invalid document (variables not a list, which
// is fatal) apart from individual malformed entries (skipped).
type Model struct {
	Root      string    `yaml:"root"`
	Variables yaml.Node `yaml:"variables"`
}

// Simulation is the per-variable `simulation:` block. Parameters are
// mode-specific; missing ones default when the generator is built.
type Simulation struct {
	Mode       string        `yaml:"mode"`
	IntervalMS int           `yaml:"interval_ms"`
	Min        *float64      `yaml:"min"`
	Max        *float64      `yaml:"max"`
	Step       *float64      `yaml:"step"`
	Values     []interface{} `yaml:"values"`
	PeriodMS   *float64      `yaml:"period_ms"`
}

// Variable is one entry of `model.variables`.
type Variable struct {
	Name       string      `yaml:"name"`
	Path       string      `yaml:"path"`
	Type       string      `yaml:"type"`
	Initial    interface{} `yaml:"initial"`
	Writable   *bool       `yaml:"writable"`
	NodeID     string      `yaml:"node_id"`
	Simulation *Simulation `yaml:"simulation"`
}

// IsWritable defaults to true when the field is absent.
func (v *Variable) IsWritable() bool {
	return v.Writable == nil || *v.Writable
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  Model        `yaml:"model"`
}

// RootName returns the model root container name, defaulted.
func (m *Model) RootName() string {
	if m.Root == "" {
		return DefaultRoot
	}
	return m.Root
}

// DecodeVariables materializes the variable list. A `variables` value that is
// not a sequence is a fatal configuration error; entries that are not mappings
// (or fail to decode) are counted as skipped, not fatal.
func (m *Model) DecodeVariables() (vars []Variable, skipped int, err error) {
	if m.Variables.Kind == 0 {
		return nil, 0, nil
	}
	if m.Variables.Kind != yaml.SequenceNode {
		return nil, 0, fmt.Errorf("model.variables must be a list")
	}
	for _, item := range m.Variables.Content {
		if item.Kind != yaml.MappingNode {
			skipped++
			continue
		}
		var v Variable
		if err := item.Decode(&v); err != nil {
			skipped++
			continue
		}
		vars = append(vars, v)
	}
	return vars, skipped, nil
}

// Load reads and parses a configuration file, applying server defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Server.Endpoint == "" {
		cfg.Server.Endpoint = DefaultEndpoint
	}
	if cfg.Server.NamespaceURI == "" {
		cfg.Server.NamespaceURI = DefaultNamespaceURI
	}
	if cfg.Server.TickMS <= 0 {
		cfg.Server.TickMS = DefaultTickMS
	}
	return &cfg, nil
}

// WriteExample materializes the default example document at path, creating
// parent directories as needed.
func WriteExample(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(ExampleConfig), 0644)
}
