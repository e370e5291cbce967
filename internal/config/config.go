// Package config holds the pipeline configuration: the persisted run record
// (flags, noise level, trial count, bond lengths) plus circuit, optimizer,
// storage, and logging settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"cusp/internal/chem"
)

// Config holds all cusp configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// The persisted run record.
	Run RunConfig `yaml:"run"`

	// Depolarizing noise channel settings.
	Noise NoiseConfig `yaml:"noise"`

	// Ansatz and autoencoder geometry.
	Circuit CircuitConfig `yaml:"circuit"`

	// Optimizer settings shared by the three stages.
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// Persistence.
	Store StoreConfig `yaml:"store"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// RunConfig is the configuration record every run persists alongside its
// outputs.
type RunConfig struct {
	Enabled     bool      `yaml:"enabled"`
	Trials      int       `yaml:"trials"`
	BondLengths []float64 `yaml:"bond_lengths"`
}

// NoiseConfig configures the simulator's depolarizing channel.
type NoiseConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Probability float64 `yaml:"probability"`
}

// CircuitConfig configures the ansatz and autoencoder shapes.
type CircuitConfig struct {
	Qubits        int `yaml:"qubits"`
	PrepLayers    int `yaml:"prep_layers"`
	EncoderLayers int `yaml:"encoder_layers"`
	LatentQubits  int `yaml:"latent_qubits"`
}

// OptimizerConfig configures the shared optimization loop envelope.
type OptimizerConfig struct {
	Method            string  `yaml:"method"` // spsa, coordinate
	MaxIterations     int     `yaml:"max_iterations"`
	RetryBudget       int     `yaml:"retry_budget"`
	EnergyThreshold   float64 `yaml:"energy_threshold"`   // hartree error accepted in stage 1
	FidelityThreshold float64 `yaml:"fidelity_threshold"` // trash fidelity accepted in stage 2
	Seed              int64   `yaml:"seed"`
	Workers           int     `yaml:"workers"`
}

// StoreConfig configures the run store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
	RunDir       string `yaml:"run_dir"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cusp",
		Version: "0.3.0",

		Run: RunConfig{
			Enabled:     true,
			Trials:      100,
			BondLengths: []float64{0.45, 0.60, 0.75, 0.90, 1.05, 1.20},
		},

		Noise: NoiseConfig{
			Enabled:     false,
			Probability: 0.01,
		},

		Circuit: CircuitConfig{
			Qubits:        chem.Qubits,
			PrepLayers:    2,
			EncoderLayers: 2,
			LatentQubits:  1,
		},

		Optimizer: OptimizerConfig{
			Method:            "spsa",
			MaxIterations:     400,
			RetryBudget:       3,
			EnergyThreshold:   0.02,
			FidelityThreshold: 0.98,
			Seed:              7,
			Workers:           4,
		},

		Store: StoreConfig{
			DatabasePath: "data/cusp.db",
			RunDir:       "runs",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("CUSP_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("CUSP_RUN_DIR"); dir != "" {
		c.Store.RunDir = dir
	}
	if v := os.Getenv("CUSP_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Run.Trials = n
		}
	}
	if v := os.Getenv("CUSP_NOISE_PROB"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && p >= 0 {
			c.Noise.Probability = p
			c.Noise.Enabled = p > 0
		}
	}
	if v := os.Getenv("CUSP_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Optimizer.Seed = n
		}
	}
}

// ValidMethods lists the supported optimizer methods.
var ValidMethods = []string{"spsa", "coordinate"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Run.BondLengths) == 0 {
		return fmt.Errorf("no bond lengths configured")
	}
	lo, hi := chem.BondRange()
	for _, b := range c.Run.BondLengths {
		if b < lo || b > hi {
			return fmt.Errorf("bond length %.4f outside supported range [%.2f, %.2f]", b, lo, hi)
		}
	}
	if c.Run.Trials < 1 {
		return fmt.Errorf("trials must be positive, got %d", c.Run.Trials)
	}
	if c.Noise.Probability < 0 || c.Noise.Probability > 1 {
		return fmt.Errorf("noise probability %.4f not in [0, 1]", c.Noise.Probability)
	}
	if c.Circuit.Qubits != chem.Qubits {
		return fmt.Errorf("register width %d does not match the molecular model (%d qubits)", c.Circuit.Qubits, chem.Qubits)
	}
	if c.Circuit.LatentQubits < 1 || c.Circuit.LatentQubits >= c.Circuit.Qubits {
		return fmt.Errorf("latent block %d must be smaller than the register (%d qubits)", c.Circuit.LatentQubits, c.Circuit.Qubits)
	}
	if c.Circuit.PrepLayers < 1 || c.Circuit.EncoderLayers < 1 {
		return fmt.Errorf("ansatz layers must be positive")
	}
	valid := false
	for _, m := range ValidMethods {
		if c.Optimizer.Method == m {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid optimizer method: %s (valid: %v)", c.Optimizer.Method, ValidMethods)
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("optimizer iterations must be positive, got %d", c.Optimizer.MaxIterations)
	}
	if c.Optimizer.RetryBudget < 0 {
		return fmt.Errorf("retry budget must be non-negative, got %d", c.Optimizer.RetryBudget)
	}
	if c.Optimizer.Workers < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.Optimizer.Workers)
	}
	return nil
}
