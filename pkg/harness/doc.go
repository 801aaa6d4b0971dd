// Package harness drives the full lifecycle of an IaC engine invocation
// against one module directory: setup with linked fixture files, init,
// plan, apply, output, destroy, refresh and state inspection.
//
// A Harness owns its module directory for its lifetime. Operations run
// strictly in the order they are invoked and block until the engine
// subprocess exits; the harness never reorders or pipelines commands and
// never pre-validates operation order, the engine's own rejection (for
// example apply before init) surfaces as a runner.CommandError.
//
// Construct with New for terraform-style engines or NewTerragrunt for
// terragrunt, optionally in run-all mode where every command is prefixed
// with "run-all" and JSON-producing commands emit one document per
// orchestrated module. Call Close when done to remove linked files and
// engine-local state.
package harness
