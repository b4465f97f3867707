package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Config is the falsepos configuration file.
type Config struct {
	Server ServerConfig `json:"server"`
	Solver SolverConfig `json:"solver"`
	Output OutputConfig `json:"output"`
	Batch  BatchConfig  `json:"batch"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"staticDir"`
	DBPath    string `json:"dbPath"` // empty: history is not persisted
	Samples   int    `json:"samples"`
}

// SolverConfig holds the defaults applied when a run leaves a field empty.
type SolverConfig struct {
	Tolerance float64 `json:"tolerance"` // percent
	MaxIter   int     `json:"maxIter"`   // 0 = until convergence or safety cap
	SafetyCap int     `json:"safetyCap"`
}

// OutputConfig controls console rendering.
type OutputConfig struct {
	Precision int  `json:"precision"`
	Color     bool `json:"color"`
}

// BatchConfig controls batch mode.
type BatchConfig struct {
	Workers  int  `json:"workers"`
	Progress bool `json:"progress"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "static",
			Samples:   400,
		},
		Solver: SolverConfig{
			Tolerance: 0.01,
			MaxIter:   200,
			SafetyCap: 10000,
		},
		Output: OutputConfig{
			Precision: 4,
			Color:     true,
		},
		Batch: BatchConfig{
			Workers:  4,
			Progress: true,
		},
	}
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.Samples < 2 {
		return fmt.Errorf("server.samples must be >= 2, got %d", c.Server.Samples)
	}
	if !(c.Solver.Tolerance > 0) || math.IsInf(c.Solver.Tolerance, 0) {
		return fmt.Errorf("solver.tolerance must be a positive percentage, got %v", c.Solver.Tolerance)
	}
	if c.Solver.MaxIter < 0 {
		return fmt.Errorf("solver.maxIter must be >= 0, got %d", c.Solver.MaxIter)
	}
	if c.Solver.SafetyCap <= 0 {
		return fmt.Errorf("solver.safetyCap must be > 0, got %d", c.Solver.SafetyCap)
	}
	if c.Output.Precision < 0 || c.Output.Precision > 16 {
		return fmt.Errorf("output.precision must be in [0, 16], got %d", c.Output.Precision)
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 4
	}
	return nil
}
