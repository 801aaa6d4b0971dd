// Package config loads the YAML project configuration used by the
// tfharness CLI: which engine binary to run, which module directories to
// drive, cache and policy settings, and the telemetry setup. Loaded
// configurations are validated with struct tags before use.
package config
