package record

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned by a serializer that
// cannot encode a value of the given type
var ErrUnsupportedType = errors.New("unsupported value type")

// Serializer converts between the serialized and the
// deserialized representation of a value
type Serializer interface {
	ToBytes(object interface{}) ([]byte, error)
	ToObject(data []byte) (interface{}, error)
}

// Value holds either a serialized or a deserialized value,
// or both once a lazy conversion has happened. A Value
// belongs to a single record and is converted by the owning
// partition's goroutine only.
type Value struct {
	data      []byte
	object    interface{}
	hasData   bool
	hasObject bool
}

// Bytes creates a value from its serialized form
func Bytes(data []byte) *Value {
	return &Value{data: data, hasData: true}
}

// Object creates a value from its deserialized form
func Object(object interface{}) *Value {
	return &Value{object: object, hasObject: true}
}

// IsSerialized returns true if the serialized form is available
// without conversion
func (v *Value) IsSerialized() bool {
	return v != nil && v.hasData
}

// Raw returns whichever representation is already held,
// preferring the deserialized one. It never converts.
func (v *Value) Raw() interface{} {
	if v == nil {
		return nil
	}

	if v.hasObject {
		return v.object
	}

	return v.data
}

// Object returns the deserialized value, converting and
// caching it on first use
func (v *Value) Object(serializer Serializer) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	if v.hasObject {
		return v.object, nil
	}

	object, err := serializer.ToObject(v.data)

	if err != nil {
		return nil, fmt.Errorf("could not deserialize value: %w", err)
	}

	v.object = object
	v.hasObject = true

	return object, nil
}

// Bytes returns the serialized value, converting and
// caching it on first use
func (v *Value) Bytes(serializer Serializer) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	if v.hasData {
		return v.data, nil
	}

	data, err := serializer.ToBytes(v.object)

	if err != nil {
		return nil, fmt.Errorf("could not serialize value: %w", err)
	}

	v.data = data
	v.hasData = true

	return data, nil
}

// Size estimates the memory footprint of the serialized
// form. It returns 0 when only the object form is held.
func (v *Value) Size() int {
	if v == nil {
		return 0
	}

	return len(v.data)
}
