// Package codec turns cached values into bytes and back.
//
// The payload produced here is wrapped by bouncer's own framing, so a codec
// never has to represent "absent"; it only sees present values.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameMsgpack = "msgpack"
	NameJSON    = "json"
	NameCBOR    = "cbor"
)

// ByName returns the codec registered under name. An empty name selects
// msgpack, the format the registry cache has always been written in.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", NameMsgpack:
		return Msgpack[V]{}, nil
	case NameJSON:
		return JSON[V]{}, nil
	case NameCBOR:
		c, err := NewCBOR[V](false)
		if err != nil {
			return nil, err
		}
		return c, nil
	case NameProtobuf:
		return nil, ErrNoProtoMapping
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
