package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		noDeletionsPolicy(),
		noReplacementsPolicy(),
		sensitiveOutputNamingPolicy(),
	}
}

// noDeletionsPolicy blocks plans that would destroy resources. The usual
// guardrail for apply-style test suites running against long-lived
// fixtures.
func noDeletionsPolicy() Policy {
	return Policy{
		Name:        "no-deletions",
		Description: "Blocks plans containing resource delete actions",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"safety"},
		Rego: `package tfharness

import rego.v1

deny contains violation if {
	some change in input.resource_changes
	"delete" in change.change.actions
	violation := {
		"message": sprintf("resource %s would be destroyed", [change.address]),
		"severity": "error",
		"address": change.address,
	}
}
`,
	}
}

// noReplacementsPolicy warns about destroy-and-recreate changes, which
// usually indicate an immutable attribute was modified.
func noReplacementsPolicy() Policy {
	return Policy{
		Name:        "no-replacements",
		Description: "Warns about plans that replace resources instead of updating them in place",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"safety"},
		Rego: `package tfharness

import rego.v1

deny contains violation if {
	some change in input.resource_changes
	"delete" in change.change.actions
	"create" in change.change.actions
	violation := {
		"message": sprintf("resource %s would be replaced", [change.address]),
		"severity": "warning",
		"address": change.address,
	}
}
`,
	}
}

// sensitiveOutputNamingPolicy warns when an output whose name suggests a
// secret is not marked sensitive in the plan.
func sensitiveOutputNamingPolicy() Policy {
	return Policy{
		Name:        "sensitive-output-naming",
		Description: "Warns about secret-looking outputs not marked sensitive",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"hygiene"},
		Rego: `package tfharness

import rego.v1

secret_pattern := "(?i)(secret|password|token|private_key)"

deny contains violation if {
	some name, output in input.planned_values.outputs
	regex.match(secret_pattern, name)
	not output.sensitive
	violation := {
		"message": sprintf("output %s looks secret but is not marked sensitive", [name]),
		"severity": "warning",
	}
}
`,
	}
}
