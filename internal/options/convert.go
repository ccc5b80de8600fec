package options

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Convert checks a raw string value against a spec and returns its typed
// form. The spec is assumed to have passed Validate. Deterministic: the same
// input always yields the same typed output.
//
// Converted types per kind: string and url → string, int → int, bool → bool,
// color → string ("#rrggbb", lowercase), enum → string, list → []any.
func Convert(raw string, spec Spec) (any, error) {
	switch spec.Kind {
	case KindString, KindURL:
		return raw, nil

	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		if spec.Min != nil && n < *spec.Min {
			return nil, fmt.Errorf("value %d below minimum %d", n, *spec.Min)
		}
		if spec.Max != nil && n > *spec.Max {
			return nil, fmt.Errorf("value %d above maximum %d", n, *spec.Max)
		}
		return n, nil

	case KindBool:
		switch strings.ToLower(raw) {
		case "true":
			return true, nil
		case "", "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", raw)

	case KindColor:
		return convertColor(raw)

	case KindEnum:
		for _, v := range spec.Allowed {
			if raw == v {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("invalid value %q, must be one of: %s", raw, strings.Join(spec.Allowed, ", "))

	case KindList:
		if raw == "" {
			return []any{}, nil
		}
		parts := strings.Split(raw, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := Convert(strings.TrimSpace(p), *spec.Elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, spec.Kind)
	}
}

// convertColor canonicalizes a bare 3- or 6-digit hex triplet to the
// #-prefixed lowercase 6-digit form. 3-digit input expands by doubling each
// digit. Empty input is rejected.
func convertColor(raw string) (any, error) {
	if raw == "" {
		return nil, errors.New("empty color value")
	}
	if len(raw) != 3 && len(raw) != 6 {
		return nil, fmt.Errorf("invalid color %q: must be 3 or 6 hex digits", raw)
	}
	lower := strings.ToLower(raw)
	for _, c := range lower {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("invalid color %q: must be 3 or 6 hex digits", raw)
		}
	}
	if len(lower) == 3 {
		var b strings.Builder
		b.Grow(7)
		b.WriteByte('#')
		for i := 0; i < 3; i++ {
			b.WriteByte(lower[i])
			b.WriteByte(lower[i])
		}
		return b.String(), nil
	}
	return "#" + lower, nil
}
