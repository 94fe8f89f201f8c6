// Package wire implements the storage serialization format for auth-state
// records: JSON, with raw byte buffers encoded as a tagged object shape so
// binary payloads survive the text round trip at any nesting depth.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrCorrupt indicates a stored payload that fails to deserialize.
// It is distinct from "key not found": a corrupt record must never be
// mistaken for an absent one.
var ErrCorrupt = errors.New("wire: corrupt record")

// Buffer is a raw byte sequence that serializes as the tagged shape
// {"type":"Buffer","data":[..]} instead of the default base64 string.
// It is the self-describing conversion hook Marshal defers to before
// generic traversal.
type Buffer []byte

type taggedBuffer struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the buffer as an explicit type marker plus an
// ordered sequence of byte values.
func (b Buffer) MarshalJSON() ([]byte, error) {
	data := make([]int, len(b))
	for i, v := range b {
		data[i] = int(v)
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Data []int  `json:"data"`
	}{Type: "Buffer", Data: data})
}

// UnmarshalJSON accepts the tagged shape (data as a byte array or as a
// base64 string) and, for interoperability, a plain base64 string.
func (b *Buffer) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("%w: buffer base64: %v", ErrCorrupt, err)
		}
		*b = raw
		return nil
	}
	var tag taggedBuffer
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: buffer shape: %v", ErrCorrupt, err)
	}
	if tag.Type != "Buffer" {
		return fmt.Errorf("%w: buffer type marker %q", ErrCorrupt, tag.Type)
	}
	raw, ok := decodeBufferData(tag.Data)
	if !ok {
		return fmt.Errorf("%w: buffer data", ErrCorrupt)
	}
	*b = raw
	return nil
}

func decodeBufferData(data json.RawMessage) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, false
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, false
		}
		return raw, true
	}
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, false
	}
	raw := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return nil, false
		}
		raw[i] = byte(v)
	}
	return raw, true
}

// Marshal serializes v into the storage representation. Byte slices are
// tagged, maps and slices are walked recursively, values providing their
// own MarshalJSON are deferred to, everything else goes through
// encoding/json unchanged.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(tag(v))
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return data, nil
}

func tag(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Buffer:
		return x
	case []byte:
		return Buffer(x)
	case json.Marshaler:
		// Value brings its own wire form; do not traverse it.
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = tag(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = tag(e)
		}
		return out
	default:
		return x
	}
}

// Unmarshal deserializes a stored payload into a generic value tree,
// reconstructing tagged buffer shapes into []byte at every depth.
func Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return revive(v), nil
}

// Decode deserializes a stored payload into a typed destination. Buffer
// fields revive themselves through their UnmarshalJSON hook.
func Decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

func revive(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if raw, ok := asBuffer(x); ok {
			return raw
		}
		for k, e := range x {
			x[k] = revive(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = revive(e)
		}
		return x
	default:
		return v
	}
}

// asBuffer reports whether m is exactly the tagged buffer shape.
func asBuffer(m map[string]any) ([]byte, bool) {
	if len(m) != 2 {
		return nil, false
	}
	if t, _ := m["type"].(string); t != "Buffer" {
		return nil, false
	}
	switch d := m["data"].(type) {
	case []any:
		raw := make([]byte, len(d))
		for i, e := range d {
			f, ok := e.(float64)
			if !ok || f < 0 || f > 255 || f != math.Trunc(f) {
				return nil, false
			}
			raw[i] = byte(f)
		}
		return raw, true
	case string:
		raw, err := base64.StdEncoding.DecodeString(d)
		if err != nil {
			return nil, false
		}
		return raw, true
	}
	return nil, false
}
