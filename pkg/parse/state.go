package parse

import (
	"encoding/json"
	"fmt"
)

// StateDocument wraps one pulled state payload. Resources live in a flat
// namespace: each key is the entry's module, type, and name fields joined
// by dots, irrespective of nesting. An empty or absent module field still
// contributes its (empty) segment, giving keys like
// ".null_resource.foo_resource", a long-standing quirk that callers rely
// on, preserved for compatibility.
type StateDocument struct {
	raw     map[string]any
	outputs *ValueMap

	// resources is built lazily on first access.
	resources map[string]map[string]any
}

// NewStateDocument wraps an already-decoded state payload.
func NewStateDocument(raw map[string]any) *StateDocument {
	if raw == nil {
		raw = map[string]any{}
	}
	var outputsRaw map[string]any
	if values, ok := raw["values"].(map[string]any); ok {
		outputsRaw, _ = values["outputs"].(map[string]any)
	}
	if outputsRaw == nil {
		outputsRaw, _ = raw["outputs"].(map[string]any)
	}
	return &StateDocument{
		raw:     raw,
		outputs: NewValueMap(outputsRaw),
	}
}

// ParseStateDocument decodes state JSON text.
func ParseStateDocument(data []byte) (*StateDocument, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Doc: -1, Err: err}
	}
	return NewStateDocument(raw), nil
}

// Outputs returns the state's output values.
func (s *StateDocument) Outputs() *ValueMap {
	return s.outputs
}

// Resources returns the state's resources keyed by the flat
// module.type.name composite.
func (s *StateDocument) Resources() map[string]map[string]any {
	if s.resources == nil {
		s.resources = map[string]map[string]any{}
		if list, ok := s.raw["resources"].([]any); ok {
			for _, entry := range list {
				res, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				module, _ := res["module"].(string)
				typ, _ := res["type"].(string)
				name, _ := res["name"].(string)
				key := fmt.Sprintf("%s.%s.%s", module, typ, name)
				s.resources[key] = res
			}
		}
	}
	return s.resources
}

// Version returns the state format version.
func (s *StateDocument) Version() any {
	return s.raw["version"]
}

// TerraformVersion returns the engine version recorded in the state.
func (s *StateDocument) TerraformVersion() string {
	v, _ := s.raw["terraform_version"].(string)
	return v
}

// RawField is the escape hatch for payload fields without a typed accessor.
func (s *StateDocument) RawField(name string) (any, bool) {
	v, ok := s.raw[name]
	return v, ok
}

// Raw returns the full underlying payload.
func (s *StateDocument) Raw() map[string]any {
	return s.raw
}
