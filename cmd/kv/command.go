package main

import "github.com/ugorji/go/codec"

// CommandType distinguishes the two mutating operations this example
// service supports, grounded on the teacher's own CommandSet/CommandUnset
// constants referenced from cmd/kv/statemachine.go.
type CommandType int

const (
	CommandSet CommandType = iota
	CommandUnset
)

// Command is the payload carried inside a paxos.Request once decided; it
// is msgpack-encoded the same way the teacher's KVSMSnapshot encodes
// state (github.com/ugorji/go/codec, MsgpackHandle).
type Command struct {
	Type  CommandType
	Key   string
	Value []byte
}

func encodeCommand(c Command) []byte {
	var out []byte
	_ = codec.NewEncoderBytes(&out, &codec.MsgpackHandle{}).Encode(c)
	return out
}

// DecodeCommand parses a Command previously produced by encodeCommand. A
// malformed payload is a ProtocolViolation one level up (the core already
// guarantees byte-exact delivery of whatever was proposed); here it just
// surfaces as a zero-value Set of an empty key, since the adapter's Apply
// path has no way to refuse a decided entry.
func DecodeCommand(payload []byte) Command {
	var c Command
	_ = codec.NewDecoderBytes(payload, &codec.MsgpackHandle{}).Decode(&c)
	return c
}
