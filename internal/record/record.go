// Package record defines the schema-free record used by every layer of
// tripbook: an ordered set of named scalar fields with two reserved keys.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

const (
	FieldID   = "ID"
	FieldType = "type"
)

const (
	TypeClient  = "client"
	TypeAirline = "airline"
	TypeFlight  = "flight"
)

var Types = []string{TypeClient, TypeAirline, TypeFlight}

var ErrNotObject = errors.New("record: not a JSON object")

type Field struct {
	Key   string
	Value Value
}

func F(key string, value Value) Field {
	return Field{Key: key, Value: value}
}

// Record keeps fields in insertion order. The zero value is an empty record.
type Record struct {
	keys   []string
	values map[string]Value
}

func New(fields ...Field) *Record {
	r := &Record{}
	for _, field := range fields {
		r.Set(field.Key, field.Value)
	}
	return r
}

// FromMap builds a record from a plain map. Keys are sorted since maps carry
// no order.
func FromMap(in map[string]any) (*Record, error) {
	keys := make([]string, 0, len(in))
	for key := range in {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	r := &Record{}
	for _, key := range keys {
		value, err := ValueOf(in[key])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		r.Set(key, value)
	}
	return r, nil
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keys...)
}

func (r *Record) Get(key string) (Value, bool) {
	if r == nil || r.values == nil {
		return Value{}, false
	}
	value, ok := r.values[key]
	return value, ok
}

func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Set adds or replaces a field. Replacing keeps the original position.
func (r *Record) Set(key string, value Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r *Record) Delete(key string) {
	if r == nil || r.values == nil {
		return
	}
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, existing := range r.keys {
		if existing == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

func (r *Record) Each(fn func(key string, value Value)) {
	if r == nil {
		return
	}
	for _, key := range r.keys {
		fn(key, r.values[key])
	}
}

func (r *Record) Fields() []Field {
	out := make([]Field, 0, r.Len())
	r.Each(func(key string, value Value) {
		out = append(out, Field{Key: key, Value: value})
	})
	return out
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]Value, len(r.values)),
	}
	for key, value := range r.values {
		out.values[key] = value
	}
	return out
}

// ID returns the record identifier when it is a positive integer.
func (r *Record) ID() (int64, bool) {
	value, ok := r.Get(FieldID)
	if !ok {
		return 0, false
	}
	id, ok := value.Int64()
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func (r *Record) Type() string {
	value, ok := r.Get(FieldType)
	if !ok {
		return ""
	}
	s, _ := value.Str()
	return s
}

// Merge copies every field of patch into r except the identifier.
func (r *Record) Merge(patch *Record) {
	patch.Each(func(key string, value Value) {
		if key == FieldID {
			return
		}
		r.Set(key, value)
	})
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("marshal record key: %w", err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valueBytes, err := r.values[key].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal record field %q: %w", key, err)
		}
		buf.Write(valueBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrNotObject
	}

	out := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode record: unexpected key token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode record field %q: %w", key, err)
		}
		value, err := valueFromJSON(raw)
		if err != nil {
			return fmt.Errorf("decode record field %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("decode record: trailing data")
	}

	*r = out
	return nil
}

// IsKnownType reports whether t is one of the three record categories.
func IsKnownType(t string) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}
