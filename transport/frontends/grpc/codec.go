package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype of map service calls
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec encodes map service messages as JSON
type Codec struct{}

// Marshal implements encoding.Codec.Marshal
func (Codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements encoding.Codec.Unmarshal
func (Codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name implements encoding.Codec.Name
func (Codec) Name() string {
	return CodecName
}
