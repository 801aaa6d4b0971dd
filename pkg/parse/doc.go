// Package parse turns raw engine JSON output into queryable views.
//
// Three wrappers cover the engine's document kinds: ValueMap for output and
// variable maps, PlanDocument for machine-readable plans, and StateDocument
// for pulled state. Two different addressing conventions coexist and must
// not be conflated: a plan's resource_changes list keys resources by their
// full original address, while the module tree keys every descendant
// relative to its containing module's own address. State resources live in
// a third, flat namespace joining module, type, and name with dots.
//
// SplitDocuments handles the orchestrator's run-all streams, which print
// several JSON documents back to back with no separator.
package parse
