// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the default timeout for runtime-host HTTP requests.
	defaultRequestTimeout = 600 * time.Second
	// DefaultCacheDir is where exported and optimized model artifacts are kept.
	DefaultCacheDir = "./cache_models"
	// DefaultTestTimes is the repeat count used to average inference latency.
	DefaultTestTimes = 1000
)

// Engine names accepted in configuration and on the command line.
const (
	EngineONNXRuntime = "onnxruntime"
	EngineTorch       = "torch"
	EngineTorchScript = "torchscript"
)

// Config represents the top-level application configuration.
type Config struct {
	Models          []string      `json:"models,omitempty"`
	Engines         []string      `json:"engines,omitempty"`
	Hosts           []RuntimeHost `json:"hosts"`
	CacheDir        string        `json:"cacheDir,omitempty"`
	UseGPU          bool          `json:"useGpu"`
	FP16            bool          `json:"fp16"`
	Optimize        bool          `json:"optimize"`
	Validate        bool          `json:"validate"`
	TestTimes       int           `json:"testTimes,omitempty"`
	BatchSizes      []int         `json:"batchSizes,omitempty"`
	SequenceLengths []int         `json:"sequenceLengths,omitempty"`
	InputCounts     []int         `json:"inputCounts,omitempty"`
	DetailCSV       string        `json:"detailCsv,omitempty"`
	SummaryCSV      string        `json:"summaryCsv,omitempty"`
	FusionCSV       string        `json:"fusionCsv,omitempty"`
	Registry        string        `json:"registry,omitempty"`
	TimeoutSeconds  int           `json:"timeout,omitempty"`
	Debug           bool          `json:"debug"`
	LogFile         string        `json:"logFile,omitempty"`
	ConfigPath      string        `json:"-"`
}

// RuntimeHost is a runtime sidecar that serves one engine's export, load, and
// inference endpoints.
type RuntimeHost struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Engine string `json:"engine"`
}

// KnownEngine reports whether name is one of the supported engine selectors.
func KnownEngine(name string) bool {
	switch name {
	case EngineONNXRuntime, EngineTorch, EngineTorchScript:
		return true
	}
	return false
}

// RequestTimeout returns the timeout duration for runtime-host HTTP requests,
// falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "dromos.log"
}

// HostFor returns the configured runtime host serving the named engine. The
// torch and torchscript engines share the torch runtime host.
func (c Config) HostFor(engine string) (RuntimeHost, bool) {
	lookup := engine
	if lookup == EngineTorchScript {
		lookup = EngineTorch
	}
	for _, host := range c.Hosts {
		if host.Engine == lookup {
			return host, true
		}
	}
	return RuntimeHost{}, false
}

// ApplyDefaults fills unset sweep parameters with the documented defaults.
func (c *Config) ApplyDefaults() {
	if len(c.Engines) == 0 {
		c.Engines = []string{EngineONNXRuntime}
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.TestTimes <= 0 {
		c.TestTimes = DefaultTestTimes
	}
	if len(c.BatchSizes) == 0 {
		c.BatchSizes = []int{1, 2}
	}
	if len(c.SequenceLengths) == 0 {
		c.SequenceLengths = []int{8, 32, 128}
	}
	if len(c.InputCounts) == 0 {
		c.InputCounts = []int{1}
	}
}

// Validate checks cross-field constraints that the sweep relies on.
func (c Config) ValidateConfig() error {
	for _, engine := range c.Engines {
		if !KnownEngine(engine) {
			return fmt.Errorf("unknown engine %q (choose from %s, %s, %s)",
				engine, EngineONNXRuntime, EngineTorch, EngineTorchScript)
		}
	}
	for _, count := range c.InputCounts {
		if count < 1 || count > 3 {
			return fmt.Errorf("input count %d out of range [1,3]", count)
		}
	}
	return nil
}

// Load reads the application configuration from the specified path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("no configuration file found at %q", path)
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}

	config.ConfigPath = path
	config.ApplyDefaults()
	if err := config.ValidateConfig(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}
