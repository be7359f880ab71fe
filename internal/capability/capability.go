// Package capability defines the canonical tool capability contract shared
// by every execution provider. A capability is a named, schema-described
// operation (vault I/O or Todoist) that a model may call through the
// tool-calling protocol. The registry is built once at startup and is
// read-only afterwards.
package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Spec describes one capability: its identifier, the description handed to
// the model for grounding, and the JSON Schema contracts for input and
// output payloads. Specs are immutable after Build.
type Spec struct {
	// Name is the dotted capability identifier, e.g. "vault.read_file".
	Name string

	// Description is the human-readable summary given to the model.
	Description string

	// InputSchema is the JSON Schema for the call arguments.
	InputSchema json.RawMessage

	// OutputSchema is the JSON Schema for the data returned on success.
	OutputSchema json.RawMessage

	// ParityRequired marks capabilities every provider must support
	// equivalently, regardless of backend.
	ParityRequired bool

	compiled *jsonschema.Schema
}

// ValidateInput checks a decoded argument payload against the capability's
// input schema. A nil payload is validated as an empty object.
func (s *Spec) ValidateInput(payload map[string]any) error {
	if s.compiled == nil {
		return fmt.Errorf("capability %s: input schema not compiled", s.Name)
	}
	doc, err := normalize(payload)
	if err != nil {
		return fmt.Errorf("capability %s: %w", s.Name, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("capability %s: %w", s.Name, err)
	}
	return nil
}

// normalize round-trips a payload through encoding/json so the validator
// only ever sees canonical JSON value types, regardless of how the payload
// map was constructed.
func normalize(payload map[string]any) (any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

// Registry maps capability names to their specs.
type Registry map[string]*Spec

// Get returns the spec for name, or false if the capability is unknown.
func (r Registry) Get(name string) (*Spec, bool) {
	s, ok := r[name]
	return s, ok
}

// Names returns all capability names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build constructs the registry of the six canonical capabilities and
// compiles their input schemas. The capability table is fixed at compile
// time; a schema that fails to compile is a programmer error and panics.
func Build() Registry {
	reg := make(Registry, len(builtinSpecs))
	for i := range builtinSpecs {
		s := builtinSpecs[i]
		compiled, err := compileSchema(s.Name, s.InputSchema)
		if err != nil {
			panic(fmt.Sprintf("capability: compile %s input schema: %v", s.Name, err))
		}
		s.compiled = compiled
		reg[s.Name] = &s
	}
	return reg
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	url := name + ".schema.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}
