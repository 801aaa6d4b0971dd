package parse

import (
	"errors"
	"testing"
)

// planFixture mirrors the shape of a terraform plan JSON document: a flat
// resource_changes list with full addresses plus a nested module tree.
const planFixture = `{
  "format_version": "0.1",
  "terraform_version": "0.12.6",
  "variables": {
    "foo": {"value": "bar"}
  },
  "planned_values": {
    "outputs": {
      "spam": {"value": "bar", "sensitive": false}
    },
    "root_module": {
      "resources": [
        {
          "address": "spam.somespam",
          "type": "spam",
          "name": "somespam",
          "values": {"spam-value": "spam"}
        }
      ],
      "child_modules": [
        {
          "address": "module.parent",
          "resources": [
            {
              "address": "module.parent.foo.somefoo",
              "type": "foo",
              "name": "somefoo",
              "values": {"foo-value": "foo"}
            }
          ],
          "child_modules": [
            {
              "address": "module.parent.module.child",
              "resources": [
                {
                  "address": "module.parent.module.child.eggs.someeggs",
                  "type": "eggs",
                  "name": "someeggs",
                  "values": {"eggs-value": "eggs"}
                }
              ]
            }
          ]
        }
      ]
    }
  },
  "resource_changes": [
    {
      "address": "module.parent.foo.somefoo",
      "change": {"before": null, "after": {"foo-value": "foo"}}
    },
    {
      "address": "spam.somespam",
      "change": {"before": null, "after": {"spam-value": "spam"}}
    }
  ],
  "output_changes": {
    "spam": {"actions": ["create"], "before": null, "after": "bar"}
  },
  "configuration": {
    "provider_config": {"google": {"name": "google"}}
  }
}`

func mustParsePlan(t *testing.T) *PlanDocument {
	t.Helper()
	plan, err := ParsePlanDocument([]byte(planFixture))
	if err != nil {
		t.Fatalf("ParsePlanDocument() error = %v", err)
	}
	return plan
}

func TestPlanTypedAccessors(t *testing.T) {
	plan := mustParsePlan(t)
	if got := plan.FormatVersion(); got != "0.1" {
		t.Errorf("FormatVersion() = %q", got)
	}
	if got := plan.TerraformVersion(); got != "0.12.6" {
		t.Errorf("TerraformVersion() = %q", got)
	}
	cfg := plan.Configuration()
	provider := cfg["provider_config"].(map[string]any)["google"].(map[string]any)
	if provider["name"] != "google" {
		t.Errorf("configuration provider name = %v", provider["name"])
	}
}

func TestPlanVariables(t *testing.T) {
	plan := mustParsePlan(t)
	got, err := plan.Variables().Get("foo")
	if err != nil {
		t.Fatalf("Variables().Get(foo) error = %v", err)
	}
	if got != "bar" {
		t.Errorf("variables[foo] = %v, want bar", got)
	}
}

func TestPlanResourceChangesUseFullAddresses(t *testing.T) {
	plan := mustParsePlan(t)
	const address = "module.parent.foo.somefoo"
	change, ok := plan.ResourceChanges()[address]
	if !ok {
		t.Fatalf("resource_changes missing %q, have %v", address, plan.ResourceChanges())
	}
	if change["address"] != address {
		t.Errorf("change address = %v, want %q", change["address"], address)
	}
	inner := change["change"].(map[string]any)
	if inner["before"] != nil {
		t.Errorf("change before = %v, want nil", inner["before"])
	}
}

func TestPlanOutputChanges(t *testing.T) {
	plan := mustParsePlan(t)
	change, ok := plan.OutputChanges()["spam"]
	if !ok {
		t.Fatal("output_changes missing spam")
	}
	if change["after"] != "bar" {
		t.Errorf("after = %v, want bar", change["after"])
	}
}

func TestPlanRootModulePassThroughs(t *testing.T) {
	plan := mustParsePlan(t)
	root := plan.RootModule()
	if len(plan.Resources()) != len(root.Resources()) {
		t.Error("Resources() does not pass through to root module")
	}
	if len(plan.Modules()) != len(root.ChildModules()) {
		t.Error("Modules() does not pass through to root module")
	}
}

func TestPlanRootResources(t *testing.T) {
	plan := mustParsePlan(t)
	res, ok := plan.Resources()["spam.somespam"]
	if !ok {
		t.Fatalf("root resources missing spam.somespam: %v", plan.Resources())
	}
	if res["address"] != "spam.somespam" {
		t.Errorf("address = %v", res["address"])
	}
	if res["values"].(map[string]any)["spam-value"] != "spam" {
		t.Errorf("values = %v", res["values"])
	}
}

func TestPlanModuleAddressStripping(t *testing.T) {
	plan := mustParsePlan(t)
	mod, ok := plan.Modules()["module.parent"]
	if !ok {
		t.Fatalf("modules missing module.parent: %v", plan.Modules())
	}
	if mod.Address() != "module.parent" {
		t.Errorf("Address() = %q", mod.Address())
	}

	// The module exposes its resource under the stripped key, while the
	// resource's own raw address stays fully qualified.
	res, ok := mod.Resources()["foo.somefoo"]
	if !ok {
		t.Fatalf("module resources missing foo.somefoo: %v", mod.Resources())
	}
	if res["address"] != "module.parent.foo.somefoo" {
		t.Errorf("raw address = %v, want full address", res["address"])
	}
	if res["values"].(map[string]any)["foo-value"] != "foo" {
		t.Errorf("values = %v", res["values"])
	}
}

func TestPlanSameResourceUnderBothConventions(t *testing.T) {
	plan := mustParsePlan(t)
	mod := plan.Modules()["module.parent"]
	if mod == nil {
		t.Fatal("modules missing module.parent")
	}
	if _, ok := mod.Resources()["foo.somefoo"]; !ok {
		t.Error("module-relative key foo.somefoo missing")
	}
	if _, ok := plan.ResourceChanges()["module.parent.foo.somefoo"]; !ok {
		t.Error("full-address key module.parent.foo.somefoo missing from resource_changes")
	}
}

func TestPlanNestedChildModules(t *testing.T) {
	plan := mustParsePlan(t)
	parent := plan.Modules()["module.parent"]
	child, ok := parent.ChildModules()["module.child"]
	if !ok {
		t.Fatalf("child modules = %v, want module.child", parent.ChildModules())
	}
	res, ok := child.Resources()["eggs.someeggs"]
	if !ok {
		t.Fatalf("child resources = %v", child.Resources())
	}
	if res["values"].(map[string]any)["eggs-value"] != "eggs" {
		t.Errorf("values = %v", res["values"])
	}
}

func TestPlanLazyModulesAreCached(t *testing.T) {
	plan := mustParsePlan(t)
	first := plan.Modules()["module.parent"]
	second := plan.Modules()["module.parent"]
	if first != second {
		t.Error("child modules rebuilt on second access")
	}
}

func TestPlanRawFieldEscapeHatch(t *testing.T) {
	plan := mustParsePlan(t)
	if _, ok := plan.RawField("output_changes"); !ok {
		t.Error("RawField(output_changes) missing")
	}
	if _, ok := plan.RawField("no_such_field"); ok {
		t.Error("RawField(no_such_field) reported present")
	}
}

func TestParsePlanDocumentInvalidJSON(t *testing.T) {
	_, err := ParsePlanDocument([]byte("Error: invalid configuration"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
}
