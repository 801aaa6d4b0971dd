package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tfharness/tfharness/pkg/telemetry"
)

// Config is the root of a tfharness project configuration file.
type Config struct {
	// Engine configures the IaC engine invocation.
	Engine EngineConfig `yaml:"engine"`

	// Modules lists the module directories the CLI can drive.
	Modules []ModuleConfig `yaml:"modules" validate:"dive"`

	// Cache configures the result cache.
	Cache CacheConfig `yaml:"cache"`

	// Policy configures plan policy checks.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig configures how the engine binary is run.
type EngineConfig struct {
	// Binary is the engine executable, looked up on PATH when relative.
	Binary string `yaml:"binary" validate:"required"`

	// BaseDir is the directory relative module paths resolve against.
	// Defaults to the configuration file's directory.
	BaseDir string `yaml:"basedir"`

	// RunAll prefixes every command with "run-all" (terragrunt only).
	RunAll bool `yaml:"run_all"`

	// Env holds environment variables overlaid on the inherited process
	// environment.
	Env map[string]string `yaml:"env"`

	// FailureCodes overrides the exit codes treated as hard failure.
	FailureCodes []int `yaml:"failure_codes"`
}

// ModuleConfig describes one module directory.
type ModuleConfig struct {
	// Name identifies the module on the CLI.
	Name string `yaml:"name" validate:"required"`

	// Dir is the module directory, absolute or relative to the engine
	// base directory.
	Dir string `yaml:"dir" validate:"required"`

	// ExtraFiles lists fixture files linked in during setup.
	ExtraFiles []string `yaml:"extra_files"`

	// Workspace selects a workspace during setup.
	Workspace string `yaml:"workspace"`

	// Vars are configuration variables passed to plan, apply and destroy.
	Vars map[string]any `yaml:"vars"`

	// VarFile points the engine at a variable definitions file.
	VarFile string `yaml:"var_file"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Enabled turns result caching on.
	Enabled bool `yaml:"enabled"`

	// Backend selects the store implementation.
	Backend string `yaml:"backend" validate:"omitempty,oneof=fs sqlite"`

	// Path is the cache root directory (fs) or database file (sqlite).
	Path string `yaml:"path"`
}

// PolicyConfig configures plan policy checks.
type PolicyConfig struct {
	// Paths lists .rego/.json policy files or directories.
	Paths []string `yaml:"paths"`

	// Disabled names policies to turn off, including built-ins.
	Disabled []string `yaml:"disabled"`
}

// TelemetryConfig is the YAML shape of the telemetry setup.
type TelemetryConfig struct {
	Logging struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=console json"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter" validate:"omitempty,oneof=stdout none"`
	} `yaml:"tracing"`
}

// Default returns the configuration used when no file is given: plain
// terraform, console logging at info, no cache, no metrics or tracing.
func Default() *Config {
	cfg := &Config{}
	cfg.Engine.Binary = "terraform"
	cfg.Cache.Backend = "fs"
	cfg.Telemetry.Logging.Level = "info"
	cfg.Telemetry.Logging.Format = "console"
	cfg.Telemetry.Logging.Output = "stderr"
	cfg.Telemetry.Tracing.Exporter = "none"
	return cfg
}

// Load reads and validates a configuration file. Fields left out of the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags and
// cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("invalid config: cache.path is required when the cache is enabled")
	}
	seen := make(map[string]bool, len(c.Modules))
	for _, m := range c.Modules {
		if seen[m.Name] {
			return fmt.Errorf("invalid config: duplicate module name %q", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// Module returns the named module configuration.
func (c *Config) Module(name string) (*ModuleConfig, error) {
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("module %q not in config", name)
}

// TelemetryConfig maps the YAML telemetry section onto the telemetry
// package's configuration.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	if c.Telemetry.Logging.Level != "" {
		tc.Logging.Level = c.Telemetry.Logging.Level
	}
	if c.Telemetry.Logging.Format != "" {
		tc.Logging.Format = c.Telemetry.Logging.Format
	}
	if c.Telemetry.Logging.Output != "" {
		tc.Logging.Output = c.Telemetry.Logging.Output
	}
	tc.Metrics.Enabled = c.Telemetry.Metrics.Enabled
	tc.Tracing.Enabled = c.Telemetry.Tracing.Enabled
	if c.Telemetry.Tracing.Exporter != "" {
		tc.Tracing.Exporter = c.Telemetry.Tracing.Exporter
	}
	return tc
}
