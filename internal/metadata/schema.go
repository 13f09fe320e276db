package metadata

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The subset of google.fonts.FamilyProto (gftools fonts_public.proto) this tool
// reads. Fields not declared here are discarded when decoding; declared fields
// are type checked.
var familyDescriptor = mustFamilyDescriptor()

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED

	typeString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	typeBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	typeMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func field(
	name string,
	number int32,
	label descriptorpb.FieldDescriptorProto_Label,
	typ descriptorpb.FieldDescriptorProto_Type,
	typeName string,
) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  label.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func mustFamilyDescriptor() protoreflect.MessageDescriptor {
	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("fonts_public.proto"),
		Package: proto.String("google.fonts"),
		Syntax:  proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("SourceFileProto"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("source_file", 1, optional, typeString, ""),
					field("dest_file", 2, optional, typeString, ""),
				},
			},
			{
				Name: proto.String("SourceProto"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("repository_url", 1, optional, typeString, ""),
					field("commit", 2, optional, typeString, ""),
					field("files", 3, repeated, typeMessage, ".google.fonts.SourceFileProto"),
					field("archive_url", 4, optional, typeString, ""),
					field("branch", 5, optional, typeString, ""),
					field("config_yaml", 6, optional, typeString, ""),
				},
			},
			{
				Name: proto.String("FamilyProto"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("name", 1, optional, typeString, ""),
					field("designer", 2, optional, typeString, ""),
					field("license", 3, optional, typeString, ""),
					field("category", 4, repeated, typeString, ""),
					field("date_added", 5, optional, typeString, ""),
					field("source", 12, optional, typeMessage, ".google.fonts.SourceProto"),
					field("is_noto", 13, optional, typeBool, ""),
					field("display_name", 17, optional, typeString, ""),
				},
			},
		},
	}

	fd, err := protodesc.NewFile(file, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("invalid METADATA.pb schema: %v", err))
	}
	return fd.Messages().ByName("FamilyProto")
}
