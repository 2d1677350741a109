package scamguard

import (
	"fmt"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/bouncer/codec"
)

// ProtoCodec stores a Verdict as a google.protobuf.UInt32Value.
func ProtoCodec() codec.Codec[Verdict] {
	return codec.Mapped[Verdict, *wrapperspb.UInt32Value]{
		Proto: codec.Protobuf[*wrapperspb.UInt32Value]{New: func() *wrapperspb.UInt32Value { return &wrapperspb.UInt32Value{} }},
		To: func(v Verdict) (*wrapperspb.UInt32Value, error) {
			return wrapperspb.UInt32(uint32(v)), nil
		},
		From: func(m *wrapperspb.UInt32Value) (Verdict, error) {
			if m.GetValue() > uint32(Yes) {
				return Unknown, fmt.Errorf("scamguard: invalid verdict %d", m.GetValue())
			}
			return Verdict(m.GetValue()), nil
		},
	}
}
