package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Field is one key/value pair of a lead payload.
type Field struct {
	Key   string
	Value string
}

// Payload is an ordered field map. Field order is preserved through JSON
// encoding, storage and delivery to drivers.
type Payload []Field

// Get returns the first value stored under key.
func (p Payload) Get(key string) (string, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Keys returns field keys in order.
func (p Payload) Keys() []string {
	keys := make([]string, len(p))
	for i, f := range p {
		keys[i] = f.Key
	}
	return keys
}

// Without returns a copy of p with the given keys removed.
func (p Payload) Without(keys ...string) Payload {
	out := make(Payload, 0, len(p))
next:
	for _, f := range p {
		for _, k := range keys {
			if f.Key == k {
				continue next
			}
		}
		out = append(out, f)
	}
	return out
}

// MarshalJSON encodes the payload as a JSON object with keys in field order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. String values are
// taken verbatim; any other value is kept as its compact JSON text.
func (p *Payload) UnmarshalJSON(data []byte) error {
	fields, err := DecodeObject(data)
	if err != nil {
		return err
	}
	*p = fields
	return nil
}

// DecodeObject parses a JSON object into an ordered Payload.
func DecodeObject(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("payload must be a JSON object")
	}

	out := Payload{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		value, err := rawValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func rawValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
