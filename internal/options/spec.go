package options

import (
	"errors"
	"fmt"
)

// Kind identifies one variant of the Spec tagged union.
type Kind int

const (
	// KindString accepts any string value unchanged.
	KindString Kind = iota
	// KindInt accepts base-10 integers, optionally bounds-checked.
	KindInt
	// KindBool accepts case-insensitive "true"/"false"; empty means false.
	KindBool
	// KindURL accepts an opaque URL string without further validation.
	KindURL
	// KindColor accepts a 3- or 6-digit hex triplet without a # prefix and
	// canonicalizes it to a #-prefixed lowercase 6-digit form.
	KindColor
	// KindEnum accepts one of a fixed set of string values.
	KindEnum
	// KindList accepts a comma-separated list of values of an inner spec.
	KindList
)

// String returns the spec grammar name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindURL:
		return "url"
	case KindColor:
		return "color"
	case KindEnum:
		return "enum"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Spec describes one option's value domain. Exactly the parameter fields for
// the declared Kind may be set; Validate enforces the shape.
//
// Contract:
// - Immutability: a Spec must not be mutated after it is handed to a Schema.
// - Concurrency: a validated Spec is safe for concurrent use.
type Spec struct {
	Kind Kind

	// Min and Max bound KindInt values when non-nil.
	Min *int
	Max *int

	// Allowed is the KindEnum member set, in declaration order.
	Allowed []string

	// Elem is the KindList element spec.
	Elem *Spec
}

// String returns a plain string spec.
func String() Spec { return Spec{Kind: KindString} }

// Int returns an unbounded integer spec.
func Int() Spec { return Spec{Kind: KindInt} }

// IntRange returns an integer spec bounded to [min, max].
func IntRange(min, max int) Spec {
	return Spec{Kind: KindInt, Min: &min, Max: &max}
}

// IntMin returns an integer spec with only a lower bound.
func IntMin(min int) Spec { return Spec{Kind: KindInt, Min: &min} }

// Bool returns a boolean spec.
func Bool() Spec { return Spec{Kind: KindBool} }

// URL returns an opaque URL spec.
func URL() Spec { return Spec{Kind: KindURL} }

// Color returns a hex color spec.
func Color() Spec { return Spec{Kind: KindColor} }

// Enum returns an enumeration spec over the given members.
func Enum(allowed ...string) Spec {
	return Spec{Kind: KindEnum, Allowed: allowed}
}

// List returns a comma-separated list spec over the given element spec.
func List(elem Spec) Spec {
	return Spec{Kind: KindList, Elem: &elem}
}

// Validate checks structural well-formedness of the spec: the kind is
// recognized and the parameter shape matches it. It does not evaluate
// specific values. Pure function of its input.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindString, KindBool, KindURL, KindColor:
		return s.requireBare()
	case KindInt:
		if len(s.Allowed) != 0 || s.Elem != nil {
			return fmt.Errorf("%s type accepts only min/max parameters", s.Kind)
		}
		if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
			return fmt.Errorf("int bounds invalid: min %d > max %d", *s.Min, *s.Max)
		}
		return nil
	case KindEnum:
		if s.Min != nil || s.Max != nil || s.Elem != nil {
			return errors.New("enum type accepts only a member set")
		}
		if len(s.Allowed) == 0 {
			return errors.New("enum requires at least one allowed value")
		}
		for _, v := range s.Allowed {
			if v == "" {
				return errors.New("enum values must be non-empty strings")
			}
		}
		return nil
	case KindList:
		if s.Min != nil || s.Max != nil || len(s.Allowed) != 0 {
			return errors.New("list type accepts only an element spec")
		}
		if s.Elem == nil {
			return errors.New("list requires an element spec")
		}
		if err := s.Elem.Validate(); err != nil {
			return fmt.Errorf("invalid list element spec: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, s.Kind)
	}
}

// requireBare rejects any parameter on a parameterless kind.
func (s Spec) requireBare() error {
	if s.Min != nil || s.Max != nil || len(s.Allowed) != 0 || s.Elem != nil {
		return fmt.Errorf("%s type does not accept parameters", s.Kind)
	}
	return nil
}
