package rendercache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/knuxify/vrc-embed/internal/options"
)

// Fingerprint derives a deterministic digest from a validated configuration:
// SHA-256 over the canonical JSON serialization (sorted keys, no whitespace),
// truncated to the first 8 bytes (16 hex chars). Semantically equal
// configurations serialize identically and collide to the same fingerprint.
// An empty configuration yields an empty fingerprint.
func Fingerprint(cfg options.Config) (string, error) {
	if len(cfg) == 0 {
		return "", nil
	}
	canonical, err := canonicalize(map[string]any(cfg))
	if err != nil {
		return "", fmt.Errorf("rendercache: canonicalize config: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:8]), nil
}

// canonicalize produces a deterministic JSON representation of the value.
// Map keys are sorted; slice order is preserved.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}

// Filename joins the cache entry segments: {id}.{variant}.{fingerprint}.{ext},
// with the fingerprint segment omitted when the option set was empty.
func Filename(subjectID, variant, fingerprint, filetype string) string {
	if fingerprint == "" {
		return subjectID + "." + variant + "." + filetype
	}
	return subjectID + "." + variant + "." + fingerprint + "." + filetype
}
