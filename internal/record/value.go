package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	// KindRaw holds a nested object or array kept as compact JSON text.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single field value. Numbers keep their JSON literal so that
// integers and decimals survive a load/save cycle unchanged.
type Value struct {
	kind Kind
	text string
	b    bool
}

func Null() Value { return Value{kind: KindNull} }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Int(n int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)} }

// Number wraps a JSON number literal. Invalid literals are stored as strings.
func Number(n json.Number) Value {
	if !isNumberLiteral(string(n)) {
		return String(string(n))
	}
	return Value{kind: KindNumber, text: string(n)}
}

func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// Int64 reports the value as an integer when it is an integral JSON number.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Text renders the value the way search compares it.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.text
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.text)
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindNumber, KindRaw:
		return []byte(v.text), nil
	default:
		return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := valueFromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a plain Go value into a Value.
func ValueOf(in any) (Value, error) {
	switch typed := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return typed, nil
	case string:
		return String(typed), nil
	case bool:
		return Bool(typed), nil
	case int:
		return Int(int64(typed)), nil
	case int64:
		return Int(typed), nil
	case int32:
		return Int(int64(typed)), nil
	case float64:
		return Float(typed), nil
	case json.Number:
		return Number(typed), nil
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return Value{}, fmt.Errorf("convert %T: %w", in, err)
		}
		return valueFromJSON(raw)
	}
}

// ParseScalar reads a command-line style literal. Integers, decimals,
// true/false and null keep their JSON type; anything else is a string.
func ParseScalar(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "null":
		return Null()
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if isNumberLiteral(trimmed) {
		return Value{kind: KindNumber, text: trimmed}
	}
	return String(raw)
}

func valueFromJSON(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Value{}, fmt.Errorf("decode value: empty input")
	}
	switch trimmed[0] {
	case 'n':
		if string(trimmed) != "null" {
			return Value{}, fmt.Errorf("decode value: invalid literal %q", trimmed)
		}
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, fmt.Errorf("decode value: %w", err)
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, fmt.Errorf("decode value: %w", err)
		}
		return String(s), nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return Value{}, fmt.Errorf("decode value: %w", err)
		}
		return Value{kind: KindRaw, text: buf.String()}, nil
	default:
		if !isNumberLiteral(string(trimmed)) {
			return Value{}, fmt.Errorf("decode value: invalid number %q", trimmed)
		}
		return Value{kind: KindNumber, text: string(trimmed)}, nil
	}
}

func isNumberLiteral(s string) bool {
	if s == "" {
		return false
	}
	var n json.Number
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return false
	}
	return string(n) == s
}
