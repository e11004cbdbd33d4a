package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Traveller contact details never reach the journal. Keys are matched by
// substring after lowercasing, so "Phone Number" and "Address Line 2" both go.
var contactKeyParts = []string{
	"phone", "address", "zip", "postcode",
	"email", "password", "token", "secret",
}

// canonicalDetails encodes details as the JSON object that gets hashed and
// stored: contact keys removed, keys sorted, numbers as written.
func canonicalDetails(details any) (json.RawMessage, error) {
	if details == nil {
		return json.RawMessage(`{}`), nil
	}
	decoded, err := decodeGeneric(details)
	if err != nil {
		return nil, err
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, errors.New("details must encode to a JSON object")
	}
	return encodeSorted(dropContactKeys(obj))
}

// canonicalJSON re-encodes v through a generic decode so object keys come out
// sorted and without whitespace.
func canonicalJSON(v any) ([]byte, error) {
	decoded, err := decodeGeneric(v)
	if err != nil {
		return nil, err
	}
	return encodeSorted(decoded)
}

func decodeGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return out, nil
}

// encodeSorted relies on encoding/json writing map keys in sorted order.
func encodeSorted(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func dropContactKeys(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			if isContactKey(key) {
				continue
			}
			out[key] = dropContactKeys(nested)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = dropContactKeys(nested)
		}
		return out
	default:
		return v
	}
}

func isContactKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range contactKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
