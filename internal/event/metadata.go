package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind discriminates the scalar types a metadata value can hold.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Value is a tagged scalar: exactly one of Str, Int, or Bool is meaningful,
// selected by Kind. It round-trips through JSON without resorting to
// interface{} typing.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool
}

// StringValue wraps s as a metadata value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue wraps i as a metadata value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// BoolValue wraps b as a metadata value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// MarshalJSON renders the value as a bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.Bool)), nil
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON accepts a JSON string, integer, or boolean. Fractional
// numbers are rejected: metadata carries scalars the SaaS schema defines,
// and none of them are floats.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("event: empty metadata value")
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &v.Str)
	case 't', 'f':
		v.Kind = KindBool
		return json.Unmarshal(data, &v.Bool)
	default:
		i, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("event: metadata value %s is not a string, integer, or boolean", data)
		}
		v.Kind = KindInt
		v.Int = i
		return nil
	}
}

// Metadata is an insertion-ordered mapping of string keys to scalar values.
// The zero value is not usable; call NewMetadata.
type Metadata struct {
	keys   []string
	values map[string]Value
}

// NewMetadata returns an empty metadata mapping.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]Value)}
}

// Set stores v under key, appending the key on first insertion and
// overwriting in place afterwards.
func (m *Metadata) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// SetString stores a string value under key.
func (m *Metadata) SetString(key, s string) { m.Set(key, StringValue(s)) }

// SetInt stores an integer value under key.
func (m *Metadata) SetInt(key string, i int64) { m.Set(key, IntValue(i)) }

// SetBool stores a boolean value under key.
func (m *Metadata) SetBool(key string, b bool) { m.Set(key, BoolValue(b)) }

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Metadata) Len() int { return len(m.keys) }

// MarshalJSON renders the mapping as a JSON object in insertion order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := m.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving key order as encountered.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]Value)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("event: metadata must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return err
		}
		m.Set(key, v)
	}
	_, err = dec.Token() // closing brace
	return err
}
