package fill

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Value is a field value: a single string, or several for multi-select choice fields
type Value []string

// Values maps field names to values. Keys are API names in requests and
// template field names once translated.
type Values map[string]Value

var errTrailingData = errors.New("unexpected data after JSON object")

// ValueError reports a value the named template field cannot take. It is a
// fault of the request, not of the backend.
type ValueError struct {
	Field  string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}

// UnmarshalJSON accepts a string, a number (kept in its literal form) or an
// array of strings
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}

	switch data[0] {
	case 'n':
		return fmt.Errorf("null is not a field value")
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{s}
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("list values must contain only strings: %w", err)
		}
		*v = Value(list)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s: expected string, number or list of strings", data)
		}
		*v = Value{n.String()}
		return nil
	}
}

// String returns the value as it would be displayed in a single-valued field
func (v Value) String() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// DecodeValues reads a JSON object of field values
func DecodeValues(r io.Reader) (Values, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var values Values
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if values == nil {
		return nil, fmt.Errorf("invalid JSON body: expected an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return values, nil
}
