package journal

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Snapshot renders a nested map of diagnostics as protobuf JSON. Values
// must be what structpb.NewValue accepts: numbers, strings, bools, nil,
// []interface{} and map[string]interface{}.
func Snapshot(data map[string]interface{}) ([]byte, error) {
	s, err := structpb.NewStruct(data)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

// ParseSnapshot is the inverse of Snapshot.
func ParseSnapshot(data []byte) (map[string]interface{}, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}
