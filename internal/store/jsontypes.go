package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores a free-form metadata map in a jsonb column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// JSONValue stores a polymorphic vote choice: an integer index, an array
// of indices, or a weighted-map object.
type JSONValue struct {
	Raw json.RawMessage
}

func (v JSONValue) Value() (driver.Value, error) {
	if len(v.Raw) == 0 {
		return "null", nil
	}
	return string(v.Raw), nil
}

func (v *JSONValue) Scan(value interface{}) error {
	b, err := asBytes(value)
	if err != nil {
		return err
	}
	v.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// JSONStringSlice stores an ordered list of strings (proposal choices).
type JSONStringSlice []string

func (s JSONStringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal([]string(s))
}

func (s *JSONStringSlice) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// JSONFloatSlice stores an ordered list of floats (proposal scores).
type JSONFloatSlice []float64

func (s JSONFloatSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal([]float64(s))
}

func (s *JSONFloatSlice) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// JSONIntSlice stores an unordered set of integers (discourse category filter).
type JSONIntSlice []int

func (s JSONIntSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal([]int(s))
}

func (s *JSONIntSlice) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func scanJSON(value interface{}, out interface{}) error {
	if value == nil {
		return nil
	}
	b, err := asBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}

func asBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("store: unsupported jsonb scan source type %T", value)
	}
}
