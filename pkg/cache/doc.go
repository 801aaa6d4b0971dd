// Package cache skips redundant engine invocations by storing results under
// content-addressable fingerprints.
//
// A fingerprint summarizes everything that can affect an operation's
// result: the operation name, the harness identity (binary, base directory,
// working directory), the caller's parameters with file parameters replaced
// by their content hashes, and a recursive content hash of the working
// directory. Any file change in the directory invalidates every entry for
// it, a deliberately coarse policy that favors never serving stale results
// over hit rate.
//
// Caching is an optimization, never a correctness requirement: store read
// errors degrade to a miss and store write errors are logged and swallowed.
// Entries are never evicted; cleanup is left to external tooling. The store
// may be shared across processes without locking: concurrent writers for
// the same fingerprint did equivalent work, so the last-writer-wins race is
// benign.
package cache
