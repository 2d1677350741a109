package registry

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/bouncer/codec"
)

// ProtoCodec stores ProjectData as a google.protobuf.Struct with the same
// field names as the registry's JSON.
func ProtoCodec() codec.Codec[ProjectData] {
	return codec.Mapped[ProjectData, *structpb.Struct]{
		Proto: codec.Protobuf[*structpb.Struct]{New: func() *structpb.Struct { return &structpb.Struct{} }},
		To:    projectToStruct,
		From:  projectFromStruct,
	}
}

func projectToStruct(d ProjectData) (*structpb.Struct, error) {
	domains := make([]any, len(d.VerifiedDomains))
	for i, v := range d.VerifiedDomains {
		domains[i] = v
	}
	return structpb.NewStruct(map[string]any{
		"isVerifyEnabled": d.IsVerifyEnabled,
		"verifiedDomains": domains,
	})
}

func projectFromStruct(s *structpb.Struct) (ProjectData, error) {
	var d ProjectData
	f := s.GetFields()
	if v, ok := f["isVerifyEnabled"]; ok {
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return ProjectData{}, fmt.Errorf("registry: isVerifyEnabled is %T", v.GetKind())
		}
		d.IsVerifyEnabled = b.BoolValue
	}
	for _, v := range f["verifiedDomains"].GetListValue().GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return ProjectData{}, fmt.Errorf("registry: verified domain is %T", v.GetKind())
		}
		d.VerifiedDomains = append(d.VerifiedDomains, sv.StringValue)
	}
	return d, nil
}
