// Package args maps harness option sets onto engine command-line tokens.
//
// The mapping mirrors the flags understood by terraform and terragrunt:
// tri-state booleans emit a token only when they override the tool's own
// default, map-valued options expand to one flag per entry in sorted key
// order, and list-valued options expand to one token per element.
// Unrecognized extra options are ignored rather than rejected, so a newer
// engine flag surface never breaks an older harness.
package args
