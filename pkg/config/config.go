// Package config provides configuration loading and management for slicestack.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid"
	"gopkg.in/yaml.v3"

	"slicestack/pkg/filter2d"
	"slicestack/pkg/projection"
	"slicestack/pkg/visualization"
)

// Filter type names accepted in the filter section
const (
	FilterNone       = "none"
	FilterGaussian   = "gaussian"
	FilterMedian     = "median"
	FilterTrueMedian = "truemedian"
)

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid configuration")

// SlabRange is a 1-based inclusive depth range for a thin-slab projection
type SlabRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds concurrent slice decoding and filter planes
		NumWorkers int `yaml:"numWorkers"`

		// MemoryWarnFraction is the share of physical memory above which a
		// filter run (about twice the volume size) logs a warning
		MemoryWarnFraction float64 `yaml:"memoryWarnFraction"`
	} `yaml:"processing"`

	// Filter applied once to the loaded volume before projections and slices
	Filter struct {
		// Type is one of none, gaussian, median, truemedian
		Type string `yaml:"type"`

		// KernelSize is the side length of the cubic neighborhood
		KernelSize int `yaml:"kernelSize"`

		// Sigma is the Gaussian standard deviation in voxels
		Sigma float64 `yaml:"sigma"`
	} `yaml:"filter"`

	// Projection parameters
	Projection struct {
		// Rules lists projections to produce: mip, minip, aip
		Rules []string `yaml:"rules"`

		// MinZ and MaxZ bound the depth range, 1-based inclusive, 0 = whole volume
		MinZ int `yaml:"minZ"`
		MaxZ int `yaml:"maxZ"`

		// FirstChannelOnly reduces only the first channel of each pixel
		FirstChannelOnly bool `yaml:"firstChannelOnly"`

		// Slabs are additional thin-slab projections rendered with every rule
		Slabs []SlabRange `yaml:"slabs"`
	} `yaml:"projection"`

	// Slices lists orthogonal cross-sections to extract, 1-based
	Slices struct {
		XZ []int `yaml:"xz"`
		YZ []int `yaml:"yz"`

		// Sequence lists axes (x, y, z) along which every plane is saved
		Sequence []string `yaml:"sequence"`
	} `yaml:"slices"`

	// Output parameters
	Output struct {
		// Dir receives all generated images
		Dir string `yaml:"dir"`

		// Format is the file extension for generated images, e.g. ".png"
		Format string `yaml:"format"`

		// SaveVolume writes every slice of the (filtered) volume
		SaveVolume bool `yaml:"saveVolume"`

		// Postprocess is a list of 2-D operators (see filter2d.ParseOp)
		// applied in order to every projection, slab and cross-section
		Postprocess []string `yaml:"postprocess"`

		// Colormap renders single-channel projections in false color when both ends are set
		Colormap struct {
			From string `yaml:"from"`
			To   string `yaml:"to"`
		} `yaml:"colormap"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Server parameters for serve mode
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// DefaultWorkers returns the physical core count, or the logical CPU count
// when it cannot be detected
func DefaultWorkers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumWorkers = DefaultWorkers()
	cfg.Processing.MemoryWarnFraction = 0.7

	cfg.Filter.Type = FilterNone
	cfg.Filter.KernelSize = 3
	cfg.Filter.Sigma = 2.0

	cfg.Projection.Rules = []string{"mip", "minip", "aip"}

	cfg.Output.Dir = "output"
	cfg.Output.Format = ".png"
	cfg.Output.Verbose = true

	cfg.Server.Addr = ":8080"

	return cfg
}

// Validate checks the configuration for values the processing stages would reject
func (c *Config) Validate() error {
	switch strings.ToLower(c.Filter.Type) {
	case FilterNone, "":
	case FilterGaussian:
		if c.Filter.Sigma <= 0 {
			return fmt.Errorf("%w: gaussian sigma must be positive, got %v", ErrInvalidConfig, c.Filter.Sigma)
		}
		fallthrough
	case FilterMedian, FilterTrueMedian:
		if c.Filter.KernelSize < 1 {
			return fmt.Errorf("%w: kernel size must be at least 1, got %d", ErrInvalidConfig, c.Filter.KernelSize)
		}
	default:
		return fmt.Errorf("%w: unknown filter type %q", ErrInvalidConfig, c.Filter.Type)
	}

	for _, r := range c.Projection.Rules {
		if _, err := projection.ParseRule(r); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	for _, s := range c.Projection.Slabs {
		if s.End < s.Start {
			return fmt.Errorf("%w: slab end %d before start %d", ErrInvalidConfig, s.End, s.Start)
		}
	}
	for _, a := range c.Slices.Sequence {
		if _, err := visualization.ParseAxis(a); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := filter2d.ParseChain(c.Output.Postprocess); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Processing.NumWorkers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalidConfig, c.Processing.NumWorkers)
	}
	if (c.Output.Colormap.From == "") != (c.Output.Colormap.To == "") {
		return fmt.Errorf("%w: colormap needs both from and to", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
