package pb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// gogoMarshaler and gogoUnmarshaler are the method sets the hand-written
// gogofaster-style messages in paxos.pb.go implement directly, without any
// reflection or compiled descriptor.
type gogoMarshaler interface {
	Marshal() ([]byte, error)
}

type gogoUnmarshaler interface {
	Unmarshal([]byte) error
}

// codec overrides grpc's default "proto" codec so that messages generated
// in the gogofaster style (Marshal/Unmarshal methods, no ProtoReflect) are
// (de)serialized directly instead of through the reflection-based
// google.golang.org/protobuf machinery, which these types don't implement.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(gogoMarshaler)
	if !ok {
		return nil, fmt.Errorf("pb: %T does not implement Marshal", v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(gogoUnmarshaler)
	if !ok {
		return fmt.Errorf("pb: %T does not implement Unmarshal", v)
	}
	return m.Unmarshal(data)
}

func init() {
	encoding.RegisterCodec(codec{})
}
