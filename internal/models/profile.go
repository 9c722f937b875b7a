// internal/models/profile.go
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Profile holds one applicant's attribute values keyed by field name.
// Profiles are treated as immutable once sampled: perturbation always
// clones, never mutates in place.
type Profile map[string]interface{}

// Clone returns a shallow copy of the profile. Attribute values are
// primitives (numbers, strings, bools, nil), so a shallow copy is a full copy.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Hash returns a stable hex digest of the profile, used as a cache and
// tracking key. Keys are sorted so equal profiles always hash equally.
func (p Profile) Hash() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(p))
	for _, k := range keys {
		ordered[k] = p[k]
	}
	raw, _ := json.Marshal(ordered)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Number returns the named attribute as a float64. The second return is
// false when the attribute is missing or not numeric.
func (p Profile) Number(field string) (float64, bool) {
	v, ok := p[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Text returns the named attribute as a string. The second return is false
// when the attribute is missing or not a string.
func (p Profile) Text(field string) (string, bool) {
	v, ok := p[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool reads a boolean attribute, accepting the common CSV spellings.
func (p Profile) Bool(field string) (bool, bool) {
	v, ok := p[field]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch b {
		case "true", "True", "1", "yes":
			return true, true
		case "false", "False", "0", "no":
			return false, true
		}
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	}
	return false, false
}
