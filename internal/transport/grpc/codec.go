package grpc

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeStruct maps a Struct request onto dst through its JSON field tags.
// A nil Struct decodes as an empty object.
func decodeStruct(src *structpb.Struct, dst any) error {
	if src == nil {
		src = &structpb.Struct{}
	}
	data, err := protojson.Marshal(src)
	if err != nil {
		return errors.Wrap(err, "encode request struct")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, "decode request")
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, errors.Wrap(err, "decode response struct")
	}
	return out, nil
}
