package record

import (
	"encoding/json"
	"fmt"
)

var (
	_ Serializer = RawSerializer{}
	_ Serializer = JSONSerializer{}
)

// RawSerializer treats values as opaque byte slices.
// Strings are accepted on the way in.
type RawSerializer struct{}

// ToBytes implements Serializer.ToBytes
func (RawSerializer) ToBytes(object interface{}) ([]byte, error) {
	switch o := object.(type) {
	case []byte:
		return o, nil
	case string:
		return []byte(o), nil
	case nil:
		return nil, nil
	}

	return nil, fmt.Errorf("%T: %w", object, ErrUnsupportedType)
}

// ToObject implements Serializer.ToObject
func (RawSerializer) ToObject(data []byte) (interface{}, error) {
	return data, nil
}

// JSONSerializer encodes values as JSON documents.
// Deserialized values are generic JSON values
// (map[string]interface{}, []interface{}, float64, ...).
type JSONSerializer struct{}

// ToBytes implements Serializer.ToBytes
func (JSONSerializer) ToBytes(object interface{}) ([]byte, error) {
	return json.Marshal(object)
}

// ToObject implements Serializer.ToObject
func (JSONSerializer) ToObject(data []byte) (interface{}, error) {
	var object interface{}

	if err := json.Unmarshal(data, &object); err != nil {
		return nil, err
	}

	return object, nil
}
