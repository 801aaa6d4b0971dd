package cache

// Key locates one cache entry. WorkDir and Op segment the store so that
// caches for different modules or different operations never collide;
// Fingerprint addresses the entry within its segment.
type Key struct {
	WorkDir     string
	Op          string
	Fingerprint string
}

// Store persists opaque serialized results keyed by fingerprint.
// Implementations provide no locking: concurrent writers for the same key
// wrote equivalent payloads, making the race benign.
type Store interface {
	// Get returns the payload stored under key, reporting whether one
	// exists.
	Get(key Key) ([]byte, bool, error)

	// Put stores payload under key, replacing any previous entry.
	Put(key Key, payload []byte) error
}
