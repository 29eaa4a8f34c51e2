package folio

import (
	"bytes"
	"encoding/json"
	"strings"
)

// HeaderField is a single request header.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered list of request headers.
//
// In JSON it is an object whose key order is preserved. Decoding also accepts
// a string holding such an object, which is how many exported sources store it.
type Header []HeaderField

// Get returns the value of the first field matching name, case-insensitively.
func (h Header) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Set replaces the value of the field matching name, or appends a new field.
func (h *Header) Set(name, value string) {
	for i, f := range *h {
		if strings.EqualFold(f.Name, name) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Merge returns a copy of h with fields from other set over it.
func (h Header) Merge(other Header) Header {
	out := make(Header, len(h), len(h)+len(other))
	copy(out, h)
	for _, f := range other {
		out.Set(f.Name, f.Value)
	}
	return out
}

// MarshalJSON encodes the header as an ordered JSON object.
func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
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

// UnmarshalJSON decodes an object, or a string containing an object.
// Non-string values are kept in their JSON form.
func (h *Header) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*h = nil
			return nil
		}
		data = []byte(s)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Errorf(EINVALID, "header must be a JSON object")
	}

	var out Header
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			value = string(raw)
		}
		out = append(out, HeaderField{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*h = out
	return nil
}
