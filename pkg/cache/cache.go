package cache

import (
	"github.com/tfharness/tfharness/pkg/telemetry"
)

// Cache wires fingerprinting to a Store for one harness instance. Lifecycle
// methods call Execute explicitly per call site, keeping the set of
// fingerprinted parameters visible where each operation is defined.
type Cache struct {
	store   Store
	id      Identity
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for cache diagnostics.
func WithLogger(logger *telemetry.Logger) Option {
	return func(c *Cache) { c.logger = logger.NewComponentLogger("cache") }
}

// WithMetrics sets the metrics collector for hit/miss counters.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(c *Cache) { c.metrics = metrics }
}

// New creates a cache for the given identity backed by store.
func New(store Store, id Identity, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		id:     id,
		logger: telemetry.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one cacheable operation. When c is nil or useCache is
// false, fn runs unconditionally and the store is not touched. Otherwise
// the operation's fingerprint is computed from op, the identity, and
// params; a stored entry is returned without running fn, and a miss runs
// fn and stores any non-empty result.
//
// Store failures never fail the operation: a read error degrades to a
// miss, a write error is logged and swallowed.
func (c *Cache) Execute(op string, params map[string]any, useCache bool, fn func() ([]byte, error)) ([]byte, error) {
	if c == nil || !useCache {
		return fn()
	}

	fingerprint, err := Fingerprint(op, c.id, params)
	if err != nil {
		// Unfingerprintable inputs (unreadable file params, vanished
		// workdir) fall through to plain execution.
		c.logger.WithError(err).Warn("fingerprint computation failed, bypassing cache")
		return fn()
	}
	key := Key{WorkDir: c.id.WorkDir, Op: op, Fingerprint: fingerprint}

	payload, ok, err := c.store.Get(key)
	if err != nil {
		c.logger.WithError(err).Warn("cache read failed, treating as miss")
	} else if ok {
		c.metrics.RecordCacheHit(op)
		c.logger.Debugf("cache hit for %s (%s)", op, fingerprint[:12])
		return payload, nil
	}
	c.metrics.RecordCacheMiss(op)

	result, err := fn()
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		if err := c.store.Put(key, result); err != nil {
			c.metrics.RecordCacheWriteFailure(op)
			c.logger.WithError(err).Warn("cache write failed, result not stored")
		}
	}
	return result, nil
}

// Identity returns the cache's identity.
func (c *Cache) Identity() Identity {
	return c.id
}
