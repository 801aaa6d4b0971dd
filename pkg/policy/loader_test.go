package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tfharness/tfharness/pkg/telemetry"
)

const sampleRego = `# Blocks plans touching the fragile module.
# Ask the platform team before removing this.
package custom

import rego.v1

deny contains "fragile module touched" if {
	some change in input.resource_changes
	startswith(change.address, "module.fragile.")
}
`

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadRegoFile(t *testing.T) {
	loader := NewLoader(telemetry.NopLogger())
	path := writePolicyFile(t, t.TempDir(), "fragile-module.rego", sampleRego)

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("len(policies) = %d", len(policies))
	}
	p := policies[0]
	if p.Name != "fragile-module" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Description != "Blocks plans touching the fragile module. Ask the platform team before removing this." {
		t.Errorf("Description = %q", p.Description)
	}
	if !p.Enabled || p.Severity != SeverityWarning {
		t.Errorf("Enabled = %v, Severity = %q", p.Enabled, p.Severity)
	}
}

func TestLoadJSONPolicy(t *testing.T) {
	loader := NewLoader(telemetry.NopLogger())
	path := writePolicyFile(t, t.TempDir(), "deny-all.json", `{
	  "name": "deny-all",
	  "description": "blocks everything",
	  "severity": "error",
	  "enabled": true,
	  "rego": "package custom\n\nimport rego.v1\n\ndeny contains \"nope\" if { true }\n"
	}`)

	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 || policies[0].Name != "deny-all" || policies[0].Severity != SeverityError {
		t.Errorf("policies = %+v", policies)
	}
}

func TestLoadDirectorySkipsBadFiles(t *testing.T) {
	loader := NewLoader(telemetry.NopLogger())
	dir := t.TempDir()
	writePolicyFile(t, dir, "good.rego", sampleRego)
	writePolicyFile(t, dir, "bad.json", "{not json")
	writePolicyFile(t, dir, "notes.txt", "not a policy")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths: %v", err)
	}
	if len(policies) != 1 || policies[0].Name != "good" {
		t.Errorf("policies = %+v", policies)
	}
}

func TestLoadMissingPathFails(t *testing.T) {
	loader := NewLoader(telemetry.NopLogger())
	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Error("missing path did not fail")
	}
}

func TestEngineLoadPaths(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	writePolicyFile(t, dir, "fragile-module.rego", sampleRego)

	if err := eng.LoadPaths(context.Background(), dir); err != nil {
		t.Fatalf("LoadPaths: %v", err)
	}
	p, err := eng.GetPolicy("fragile-module")
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if p.Rego != sampleRego {
		t.Error("loaded policy source differs from file")
	}

	result, err := eng.Evaluate(context.Background(), planInput(t, `{
	  "resource_changes": [
	    {"address": "module.fragile.null_resource.x", "change": {"actions": ["update"]}}
	  ]
	}`))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	found := false
	for _, v := range result.Violations {
		if v.Policy == "fragile-module" && v.Message == "fragile module touched" {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %+v", result.Violations)
	}
}
