// Package registry maps short intervention names to their engine class
// identifiers, primary-parameter fields, and schema-supplied default values.
// A registry is loaded once from a schema document and is immutable
// afterwards; concurrent readers need no locking.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/epiforge/ccdl/internal/domain"
)

// Descriptor describes one intervention the translator knows how to encode.
type Descriptor struct {
	// Name is the short registry key, normally the class name.
	Name string

	// Class is the full engine class identifier written into the "class"
	// field of encoded intervention objects.
	Class string

	// Primary is the field that holds the intervention's primary
	// parameter, surfaced in CCDL's parenthetical notation. Empty when the
	// intervention takes no parameter.
	Primary string

	// Secondary is an optional second parameter field. Diagnostics carry
	// their negative-result event here; property changers their value.
	Secondary string

	// WeightedChoice marks a primary parameter that is the engine's
	// weighted-outcome map rather than a scalar.
	WeightedChoice bool

	// Defaults are the schema's default parameter values, copied verbatim
	// into encoded objects before the primary parameter is applied.
	Defaults map[string]any
}

// Registry is the read-only name -> Descriptor mapping.
type Registry struct {
	entries map[string]Descriptor
}

// schemaDoc is the subset of an engine schema.json the registry reads: the
// intervention branch of idmTypes, keyed by abstract type then class name.
type schemaDoc struct {
	IDMTypes map[string]json.RawMessage `json:"idmTypes"`
}

const interventionBranch = "idmAbstractType:Intervention"

// Load reads a schema document from disk and builds a registry from it.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw schema JSON. Every class found under the
// intervention branch becomes an entry; primary-parameter fields come from
// the built-in table.
func Parse(data []byte) (*Registry, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	branch, ok := doc.IDMTypes[interventionBranch]
	if !ok {
		return nil, fmt.Errorf("schema has no %q branch", interventionBranch)
	}

	// The branch groups classes by intervention type (individual vs node).
	var groups map[string]map[string]json.RawMessage
	if err := json.Unmarshal(branch, &groups); err != nil {
		return nil, fmt.Errorf("parse intervention branch: %w", err)
	}

	r := &Registry{entries: make(map[string]Descriptor)}
	for _, classes := range groups {
		for name, blob := range classes {
			desc, err := descriptorFromSchema(name, blob)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", name, err)
			}
			r.entries[name] = desc
		}
	}
	if len(r.entries) == 0 {
		return nil, fmt.Errorf("schema %q branch defines no interventions", interventionBranch)
	}
	return r, nil
}

// descriptorFromSchema builds a Descriptor for one schema class blob. Each
// parameter entry with a "default" key contributes to Defaults; container
// defaults are reset to empty so encoded objects start clean.
func descriptorFromSchema(name string, blob json.RawMessage) (Descriptor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil {
		return Descriptor{}, err
	}

	desc := builtinDescriptor(name)
	desc.Defaults = make(map[string]any)

	class := name
	if raw, ok := fields["class"]; ok {
		_ = json.Unmarshal(raw, &class)
	}
	desc.Class = class

	for field, raw := range fields {
		switch field {
		case "class", "Sim_Types":
			continue
		}
		var param struct {
			Default *json.RawMessage `json:"default"`
		}
		if err := json.Unmarshal(raw, &param); err != nil || param.Default == nil {
			continue
		}
		var val any
		if err := json.Unmarshal(*param.Default, &val); err != nil {
			continue
		}
		switch val.(type) {
		case map[string]any:
			desc.Defaults[field] = map[string]any{}
		case []any:
			desc.Defaults[field] = []any{}
		default:
			desc.Defaults[field] = val
		}
	}
	return desc, nil
}

// Builtin returns a registry holding only the built-in descriptor table,
// with no schema defaults. Decode runs, which never write engine documents,
// use it when no schema is supplied.
func Builtin() *Registry {
	r := &Registry{entries: make(map[string]Descriptor)}
	for name := range builtins {
		r.entries[name] = builtinDescriptor(name)
	}
	return r
}

// Lookup returns the descriptor for name. Pattern rules cover families like
// diagnostics that share parameter conventions without sharing one name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	desc, ok := r.entries[name]
	return desc, ok
}

// Descriptor returns the best descriptor for name without failing: the
// registered entry when present, otherwise the built-in table and its
// pattern rules. Decode runs use it; they read engine documents and never
// need schema defaults.
func (r *Registry) Descriptor(name string) Descriptor {
	if desc, ok := r.entries[name]; ok {
		return desc
	}
	return builtinDescriptor(name)
}

// Resolve is Lookup with a hard failure mode: an unknown name is an
// unknown-intervention error, never a silent default.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	desc, ok := r.entries[name]
	if !ok {
		return Descriptor{}, domain.ErrUnknownIntervention(name)
	}
	return desc, nil
}

// Names returns every registered intervention name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered interventions.
func (r *Registry) Len() int {
	return len(r.entries)
}
