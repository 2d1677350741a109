package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// NameProtobuf selects a type's own proto mapping. ByName cannot build it
// for an arbitrary V; see Mapped.
const NameProtobuf = "protobuf"

var ErrNoProtoMapping = errors.New("codec: protobuf needs a per-type mapping")

// Protobuf encodes proto messages deterministically. New must return a
// fresh, non-nil message.
type Protobuf[M proto.Message] struct {
	New func() M
}

func (c Protobuf[M]) Encode(m M) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func (c Protobuf[M]) Decode(b []byte) (M, error) {
	m := c.New()
	err := proto.Unmarshal(b, m)
	return m, err
}

// Mapped stores a V as the proto message M.
type Mapped[V any, M proto.Message] struct {
	Proto Protobuf[M]
	To    func(V) (M, error)
	From  func(M) (V, error)
}

func (c Mapped[V, M]) Encode(v V) ([]byte, error) {
	m, err := c.To(v)
	if err != nil {
		return nil, err
	}
	return c.Proto.Encode(m)
}

func (c Mapped[V, M]) Decode(b []byte) (V, error) {
	m, err := c.Proto.Decode(b)
	if err != nil {
		var zero V
		return zero, err
	}
	return c.From(m)
}

// Select returns mapped for NameProtobuf and ByName(name) otherwise.
func Select[V any](name string, mapped Codec[V]) (Codec[V], error) {
	if name == NameProtobuf {
		if mapped == nil {
			return nil, ErrNoProtoMapping
		}
		return mapped, nil
	}
	return ByName[V](name)
}
