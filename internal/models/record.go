package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Record is an open JSON object. Values are kept as raw JSON so that fields
// this tool does not interpret pass through byte-for-byte.
type Record map[string]json.RawMessage

// Has reports whether key is present with a non-null value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	if !ok {
		return false
	}
	return !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// String decodes key as a JSON string.
func (r Record) String(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("field %q is not a string: %w", key, err)
	}
	return s, nil
}

// Compact returns the compact JSON text of key, used as an identity key
// when comparing values across records.
func (r Record) Compact(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v), true
	}
	return buf.String(), true
}

// With returns a copy of r with key set to the JSON encoding of value.
// r itself is not modified.
func (r Record) With(key string, value any) (Record, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding field %q: %w", key, err)
	}
	out := make(Record, len(r)+1)
	maps.Copy(out, r)
	out[key] = raw
	return out, nil
}
