package parse

import (
	"encoding/json"
	"sort"
)

// ValueMap wraps a mapping from name to {value, sensitive} as produced by
// the engine's output and variable maps. Lookups return the inner value
// only, never the wrapper object.
type ValueMap struct {
	raw       map[string]any
	sensitive []string
}

// NewValueMap wraps an already-decoded raw mapping.
func NewValueMap(raw map[string]any) *ValueMap {
	if raw == nil {
		raw = map[string]any{}
	}
	var sensitive []string
	for name, entry := range raw {
		if obj, ok := entry.(map[string]any); ok {
			if flag, ok := obj["sensitive"].(bool); ok && flag {
				sensitive = append(sensitive, name)
			}
		}
	}
	sort.Strings(sensitive)
	return &ValueMap{raw: raw, sensitive: sensitive}
}

// ParseValueMap decodes JSON text into a ValueMap.
func ParseValueMap(data []byte) (*ValueMap, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Doc: -1, Err: err}
	}
	return NewValueMap(raw), nil
}

// Get returns the value stored under name. An absent name fails with
// KeyNotFoundError, never a default.
func (m *ValueMap) Get(name string) (any, error) {
	entry, ok := m.raw[name]
	if !ok {
		return nil, &KeyNotFoundError{Key: name}
	}
	if obj, ok := entry.(map[string]any); ok {
		return obj["value"], nil
	}
	return nil, nil
}

// Has reports whether name is present.
func (m *ValueMap) Has(name string) bool {
	_, ok := m.raw[name]
	return ok
}

// Names returns all present names in sorted order.
func (m *ValueMap) Names() []string {
	names := make([]string, 0, len(m.raw))
	for name := range m.raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sensitive returns the names flagged sensitive, in sorted order.
func (m *ValueMap) Sensitive() []string {
	return m.sensitive
}

// Len returns the number of entries.
func (m *ValueMap) Len() int {
	return len(m.raw)
}

// Raw returns the underlying raw mapping.
func (m *ValueMap) Raw() map[string]any {
	return m.raw
}
