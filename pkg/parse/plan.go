package parse

import (
	"encoding/json"
)

// PlanModule is a node in a plan's module tree. Every resource and child
// module it exposes is keyed relative to the module's own address: the
// module's address prefix plus the separating dot is stripped from each
// descendant's full address. The root module has the empty address and
// strips nothing.
type PlanModule struct {
	raw   map[string]any
	strip int

	// children and resources are built lazily on first access.
	children  map[string]*PlanModule
	resources map[string]map[string]any
}

// newPlanModule wraps one raw module node.
func newPlanModule(raw map[string]any) *PlanModule {
	if raw == nil {
		raw = map[string]any{}
	}
	prefix, _ := raw["address"].(string)
	strip := 0
	if prefix != "" {
		strip = len(prefix) + 1
	}
	return &PlanModule{raw: raw, strip: strip}
}

// Address returns the module's own full address; empty for the root module.
func (m *PlanModule) Address() string {
	addr, _ := m.raw["address"].(string)
	return addr
}

// relative strips the module's own address prefix from a descendant address.
func (m *PlanModule) relative(addr string) string {
	if m.strip > 0 && len(addr) >= m.strip {
		return addr[m.strip:]
	}
	return addr
}

// Resources returns the module's resources keyed by module-relative address.
func (m *PlanModule) Resources() map[string]map[string]any {
	if m.resources == nil {
		m.resources = map[string]map[string]any{}
		if list, ok := m.raw["resources"].([]any); ok {
			for _, entry := range list {
				res, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				addr, _ := res["address"].(string)
				m.resources[m.relative(addr)] = res
			}
		}
	}
	return m.resources
}

// ChildModules returns the module's children keyed by module-relative
// address.
func (m *PlanModule) ChildModules() map[string]*PlanModule {
	if m.children == nil {
		m.children = map[string]*PlanModule{}
		if list, ok := m.raw["child_modules"].([]any); ok {
			for _, entry := range list {
				mod, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				addr, _ := mod["address"].(string)
				m.children[m.relative(addr)] = newPlanModule(mod)
			}
		}
	}
	return m.children
}

// Raw returns the underlying raw module node.
func (m *PlanModule) Raw() map[string]any {
	return m.raw
}

// PlanDocument wraps one machine-readable plan payload.
//
// ResourceChanges keys resources by their full original address, because
// the raw resource_changes list is flat and unrelated to the module tree.
// Resources and Modules pass through to the root module and therefore use
// module-relative keys.
type PlanDocument struct {
	raw             map[string]any
	root            *PlanModule
	outputs         *ValueMap
	variables       *ValueMap
	resourceChanges map[string]map[string]any
}

// NewPlanDocument wraps an already-decoded plan payload.
func NewPlanDocument(raw map[string]any) *PlanDocument {
	if raw == nil {
		raw = map[string]any{}
	}
	planned, _ := raw["planned_values"].(map[string]any)
	rootRaw, _ := planned["root_module"].(map[string]any)
	outputsRaw, _ := planned["outputs"].(map[string]any)
	// there might be no variables defined
	variablesRaw, _ := raw["variables"].(map[string]any)

	changes := map[string]map[string]any{}
	if list, ok := raw["resource_changes"].([]any); ok {
		for _, entry := range list {
			change, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			addr, _ := change["address"].(string)
			changes[addr] = change
		}
	}

	return &PlanDocument{
		raw:             raw,
		root:            newPlanModule(rootRaw),
		outputs:         NewValueMap(outputsRaw),
		variables:       NewValueMap(variablesRaw),
		resourceChanges: changes,
	}
}

// ParsePlanDocument decodes plan JSON text. Plan parsing is a required
// path: invalid JSON propagates as a DecodeError.
func ParsePlanDocument(data []byte) (*PlanDocument, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Doc: -1, Err: err}
	}
	return NewPlanDocument(raw), nil
}

// RootModule returns the plan's root module.
func (p *PlanDocument) RootModule() *PlanModule {
	return p.root
}

// Outputs returns the planned top-level output values.
func (p *PlanDocument) Outputs() *ValueMap {
	return p.outputs
}

// Variables returns the plan's input variables.
func (p *PlanDocument) Variables() *ValueMap {
	return p.variables
}

// ResourceChanges returns the flat change set keyed by full, unstripped
// resource address.
func (p *PlanDocument) ResourceChanges() map[string]map[string]any {
	return p.resourceChanges
}

// Resources passes through to the root module's resources.
func (p *PlanDocument) Resources() map[string]map[string]any {
	return p.root.Resources()
}

// Modules passes through to the root module's children.
func (p *PlanDocument) Modules() map[string]*PlanModule {
	return p.root.ChildModules()
}

// FormatVersion returns the plan format version.
func (p *PlanDocument) FormatVersion() string {
	v, _ := p.raw["format_version"].(string)
	return v
}

// TerraformVersion returns the engine version that produced the plan.
func (p *PlanDocument) TerraformVersion() string {
	v, _ := p.raw["terraform_version"].(string)
	return v
}

// Configuration returns the plan's configuration block.
func (p *PlanDocument) Configuration() map[string]any {
	v, _ := p.raw["configuration"].(map[string]any)
	return v
}

// OutputChanges returns the plan's output change objects by output name.
func (p *PlanDocument) OutputChanges() map[string]map[string]any {
	out := map[string]map[string]any{}
	if raw, ok := p.raw["output_changes"].(map[string]any); ok {
		for name, entry := range raw {
			if change, ok := entry.(map[string]any); ok {
				out[name] = change
			}
		}
	}
	return out
}

// RawField is the escape hatch for payload fields without a typed accessor.
func (p *PlanDocument) RawField(name string) (any, bool) {
	v, ok := p.raw[name]
	return v, ok
}

// Raw returns the full underlying payload.
func (p *PlanDocument) Raw() map[string]any {
	return p.raw
}
