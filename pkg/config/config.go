package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

// Parse loads a run document from memory: parse, scalar normalization,
// interpolation, required-key check, typed decode, range validation. It is
// pure; the returned Config is treated as read-only for the life of the run.
func Parse(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}
	if len(root.Content) == 0 {
		return nil, &SchemaError{Reason: "empty document"}
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, &SchemaError{Reason: "top-level node must be a mapping"}
	}

	normalizeScalars(doc)
	if err := resolveRefs(doc); err != nil {
		return nil, err
	}
	if err := checkRequired(doc); err != nil {
		return nil, err
	}

	resolved, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}

	dec := yaml.NewDecoder(bytes.NewReader(resolved))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &SchemaError{Reason: err.Error()}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses a run document from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal serializes a loaded config. Re-parsing the output yields an
// identical typed structure.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Save writes the fully resolved document, interpolations replaced with
// concrete values.
func Save(cfg *Config, path string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run config: %w", err)
	}
	return nil
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

func (m *Manager) LoadConfig() error {
	if m.configPath == "" {
		m.configPath = m.findConfigFile()
	}

	if DebugLog != nil {
		DebugLog("loading run config from %s", m.configPath)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		return fmt.Errorf("run config not found at %s", m.configPath)
	}

	cfg, err := Load(m.configPath)
	if err != nil {
		return err
	}

	if DebugLog != nil {
		DebugLog("run %s/%s: %d steps at lr %g",
			cfg.Experiment.Project, cfg.Experiment.Name,
			cfg.Training.MaxTrainSteps, cfg.Optimizer.Params.LearningRate)
	}

	m.config = cfg
	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) ConfigPath() string {
	return m.configPath
}

func (m *Manager) findConfigFile() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	if _, err := os.Stat("configs/generator.yaml"); err == nil {
		return "configs/generator.yaml"
	}

	if configPath := GetDefaultConfigPath(); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return "configs/generator.yaml"
}
