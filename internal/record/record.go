// Package record holds a JSON object whose fields survive a load/persist
// round trip verbatim and in their original order.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
)

// Record is one unit of work, typically one issue
type Record struct {
	keys   []string
	fields map[string]json.RawMessage
}

// New creates an empty record
func New() *Record {
	return &Record{fields: make(map[string]json.RawMessage)}
}

// FromValue builds a record from any JSON-encodable struct or map
func FromValue(v interface{}) (*Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	r := New()
	if err := r.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Has reports whether field is present, including an explicit null
func (r *Record) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Raw returns the raw JSON of a field
func (r *Record) Raw(field string) (json.RawMessage, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Keys returns the field names in order
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Set encodes value into field, appending the key if it is new. A
// json.RawMessage is stored as is. Text is written without HTML escaping.
func (r *Record) Set(field string, value interface{}) error {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return fmt.Errorf("encode %s: invalid raw JSON", field)
		}
		r.setRaw(field, append(json.RawMessage(nil), raw...))
		return nil
	}
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	r.setRaw(field, data)
	return nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Delete removes a field
func (r *Record) Delete(field string) {
	if _, ok := r.fields[field]; !ok {
		return
	}
	delete(r.fields, field)
	for i, k := range r.keys {
		if k == field {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Get decodes field into out. A missing field leaves out untouched and
// returns false; a misshapen field is a PARSE_ERROR.
func (r *Record) Get(field string, out interface{}) (bool, error) {
	raw, ok := r.fields[field]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, apperrors.NewParseError(fmt.Sprintf("field %q", field), err)
	}
	return true, nil
}

// String returns a string field, or "" when absent, null or not a string
func (r *Record) String(field string) string {
	var s string
	if ok, err := r.Get(field, &s); !ok || err != nil {
		return ""
	}
	return s
}

// Int returns an integer field, or 0
func (r *Record) Int(field string) int {
	var n int
	if ok, err := r.Get(field, &n); !ok || err != nil {
		return 0
	}
	return n
}

// Decode maps the whole record onto a typed view such as Issue
func (r *Record) Decode(out interface{}) error {
	data, err := r.MarshalJSON()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewParseError("decode record", err)
	}
	return nil
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	c := New()
	for _, k := range r.keys {
		raw := make(json.RawMessage, len(r.fields[k]))
		copy(raw, r.fields[k])
		c.setRaw(k, raw)
	}
	return c
}

func (r *Record) setRaw(field string, raw json.RawMessage) {
	if r.fields == nil {
		r.fields = make(map[string]json.RawMessage)
	}
	if _, ok := r.fields[field]; !ok {
		r.keys = append(r.keys, field)
	}
	r.fields[field] = raw
}

// MarshalJSON writes the fields in their recorded order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encode(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(r.fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, remembering key order. Duplicate keys
// keep their first position and last value.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	r.keys = nil
	r.fields = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.setRaw(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after record")
	}
	return nil
}
