package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tfharness.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
engine:
  binary: terragrunt
  basedir: ./fixtures
  run_all: true
  env:
    TF_IN_AUTOMATION: "1"
  failure_codes: [1]
modules:
  - name: vpc
    dir: modules/vpc
    workspace: staging
    vars:
      cidr: 10.0.0.0/16
  - name: dns
    dir: modules/dns
    var_file: dns.tfvars
cache:
  enabled: true
  backend: sqlite
  path: /tmp/tfharness-cache.db
policy:
  paths: [policies/]
  disabled: [no-deletions]
telemetry:
  logging:
    level: debug
    format: json
  metrics:
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Binary != "terragrunt" || !cfg.Engine.RunAll {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.Env["TF_IN_AUTOMATION"] != "1" {
		t.Errorf("env = %v", cfg.Engine.Env)
	}
	vpc, err := cfg.Module("vpc")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if vpc.Workspace != "staging" || vpc.Vars["cidr"] != "10.0.0.0/16" {
		t.Errorf("vpc = %+v", vpc)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if len(cfg.Policy.Disabled) != 1 || cfg.Policy.Disabled[0] != "no-deletions" {
		t.Errorf("policy = %+v", cfg.Policy)
	}

	tc := cfg.TelemetryConfig("test")
	if tc.Logging.Level != "debug" || tc.Logging.Format != "json" {
		t.Errorf("telemetry logging = %+v", tc.Logging)
	}
	if !tc.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
modules:
  - name: vpc
    dir: modules/vpc
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Binary != "terraform" {
		t.Errorf("Binary = %q", cfg.Engine.Binary)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing binary", `
engine:
  binary: ""
`},
		{"module without dir", `
modules:
  - name: vpc
`},
		{"bad cache backend", `
cache:
  backend: redis
`},
		{"cache enabled without path", `
cache:
  enabled: true
`},
		{"duplicate module names", `
modules:
  - name: vpc
    dir: a
  - name: vpc
    dir: b
`},
		{"bad log level", `
telemetry:
  logging:
    level: loud
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("config accepted: %s", tc.yaml)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file did not fail")
	}
}

func TestModuleNotFound(t *testing.T) {
	cfg := Default()
	if _, err := cfg.Module("ghost"); err == nil {
		t.Error("unknown module did not fail")
	}
}
