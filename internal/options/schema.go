package options

import (
	"fmt"
	"net/url"
)

// Definition declares one named option: its spec and an optional default
// expressed in raw (pre-conversion) form.
type Definition struct {
	Name    string
	Spec    Spec
	Default *string
}

// WithDefault returns a copy of the definition with a declared default.
func (d Definition) WithDefault(raw string) Definition {
	d.Default = &raw
	return d
}

// Config is a validated configuration: option name to converted value, or
// nil when the option is absent and has no default. Produced fresh per
// request and owned by that request.
type Config map[string]any

// Schema is an ordered, immutable set of option definitions.
//
// Contract:
// - Concurrency: safe for unlocked concurrent reads after NewSchema returns.
// - Errors: Parse never mutates the schema and never panics on bad input.
type Schema struct {
	defs  []Definition
	index map[string]int
}

// NewSchema builds a schema from definitions. Every definition's spec is
// validated, then every declared default is converted against its own spec;
// construction aborts on the first invalid entry.
func NewSchema(defs []Definition) (*Schema, error) {
	s := &Schema{
		defs:  make([]Definition, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	copy(s.defs, defs)

	for i, def := range s.defs {
		if def.Name == "" {
			return nil, &SchemaError{Err: fmt.Errorf("definition %d has no name", i)}
		}
		if _, dup := s.index[def.Name]; dup {
			return nil, &SchemaError{Option: def.Name, Err: fmt.Errorf("duplicate definition")}
		}
		if err := def.Spec.Validate(); err != nil {
			return nil, &SchemaError{Option: def.Name, Err: err}
		}
		if def.Default != nil {
			if _, err := Convert(*def.Default, def.Spec); err != nil {
				return nil, &SchemaError{Option: def.Name, Err: fmt.Errorf("invalid default: %w", err)}
			}
		}
		s.index[def.Name] = i
	}
	return s, nil
}

// MustSchema builds a schema and panics on error. For package-level variant
// schemas constructed at startup.
func MustSchema(defs []Definition) *Schema {
	s, err := NewSchema(defs)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse converts raw query parameters into a validated configuration. A
// parameter name not declared in the schema is an error, not silently
// ignored. Multi-valued parameters are not supported; the first value wins.
// The result contains exactly the schema's option set.
func (s *Schema) Parse(params url.Values) (Config, error) {
	for name := range params {
		if _, ok := s.index[name]; !ok {
			return nil, &ValueError{Err: fmt.Errorf("%w %q", ErrUnknownOption, name)}
		}
	}

	out := make(Config, len(s.defs))
	for _, def := range s.defs {
		raw := def.Default
		if vs, ok := params[def.Name]; ok && len(vs) > 0 {
			raw = &vs[0]
		}
		if raw == nil {
			out[def.Name] = nil
			continue
		}
		v, err := Convert(*raw, def.Spec)
		if err != nil {
			return nil, &ValueError{Option: def.Name, Err: err}
		}
		out[def.Name] = v
	}
	return out, nil
}

// Defaults returns the all-default configuration, used to seed client-side
// UI state.
func (s *Schema) Defaults() Config {
	out := make(Config, len(s.defs))
	for _, def := range s.defs {
		if def.Default == nil {
			out[def.Name] = nil
			continue
		}
		// Defaults were validated at construction; conversion cannot fail.
		v, _ := Convert(*def.Default, def.Spec)
		out[def.Name] = v
	}
	return out
}

// Names returns the option names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.defs))
	for i, def := range s.defs {
		names[i] = def.Name
	}
	return names
}

// Len returns the number of declared options.
func (s *Schema) Len() int { return len(s.defs) }
