package paxos

import (
	"encoding/binary"
	"fmt"
)

// Wire layout (spec §6), big-endian throughout:
//   type(1) view(4, signed) sentTime(8) payload(varies)
// The codec is the sole authority for byte layout; ByteSize(m) must always
// equal len(Encode(m)) (property P4).

const headerSize = 1 + 4 + 8

// recordByteSize returns the wire size of a ConsensusInstance record:
// id(4) view(4) state(4) len(4) + bytes (or 0 bytes with len=-1 if absent).
func recordByteSize(r InstanceRecord) int {
	return 4 + 4 + 4 + 4 + len(r.Value)
}

func putRecord(buf []byte, r InstanceRecord) int {
	off := 0
	binary.BigEndian.PutUint32(buf[off:], uint32(r.ID))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(r.View))
	off += 4
	binary.BigEndian.PutUint32(buf[off:], uint32(r.State))
	off += 4
	if r.Value == nil {
		binary.BigEndian.PutUint32(buf[off:], uint32(int32(-1)))
		off += 4
	} else {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(r.Value)))
		off += 4
		off += copy(buf[off:], r.Value)
	}
	return off
}

func getRecord(buf []byte) (InstanceRecord, int, error) {
	if len(buf) < 16 {
		return InstanceRecord{}, 0, fmt.Errorf("paxos: short instance record")
	}
	id := int32(binary.BigEndian.Uint32(buf[0:4]))
	view := int32(binary.BigEndian.Uint32(buf[4:8]))
	state := State(binary.BigEndian.Uint32(buf[8:12]))
	length := int32(binary.BigEndian.Uint32(buf[12:16]))
	off := 16
	var value []byte
	if length >= 0 {
		if len(buf) < off+int(length) {
			return InstanceRecord{}, 0, fmt.Errorf("paxos: truncated instance record value")
		}
		value = make([]byte, length)
		copy(value, buf[off:off+int(length)])
		off += int(length)
	}
	return InstanceRecord{ID: id, View: view, State: state, Value: value}, off, nil
}

// ByteSize returns the exact wire length Encode(m) will produce.
func ByteSize(m *Message) int {
	n := headerSize
	switch m.Kind {
	case KindPrepare:
		n += 4
	case KindPrepareOK:
		n += 4
		for _, r := range m.Prepared {
			n += recordByteSize(r)
		}
	case KindPropose:
		n += recordByteSize(m.Instance)
	case KindAccept:
		n += 4
	case KindAlive:
		// empty payload
	case KindCatchUpQuery:
		n += 4 + 8*len(m.Needed)
	case KindCatchUpResp:
		n += 4
		for _, r := range m.Decided {
			n += recordByteSize(r)
		}
	case KindCatchUpSnapshot:
		n += 4 + 4 + 4 + len(m.SnapshotBody)
	}
	return n
}

// Encode serializes m to its bit-exact wire form.
func Encode(m *Message) []byte {
	buf := make([]byte, ByteSize(m))
	buf[0] = byte(m.Kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(m.View))
	binary.BigEndian.PutUint64(buf[5:13], uint64(m.SentTime))
	off := headerSize

	switch m.Kind {
	case KindPrepare:
		binary.BigEndian.PutUint32(buf[off:], uint32(m.FirstUncommitted))
	case KindPrepareOK:
		binary.BigEndian.PutUint32(buf[off:], uint32(len(m.Prepared)))
		off += 4
		for _, r := range m.Prepared {
			off += putRecord(buf[off:], r)
		}
	case KindPropose:
		putRecord(buf[off:], m.Instance)
	case KindAccept:
		binary.BigEndian.PutUint32(buf[off:], uint32(m.InstanceID))
	case KindAlive:
		// nothing
	case KindCatchUpQuery:
		binary.BigEndian.PutUint32(buf[off:], uint32(len(m.Needed)))
		off += 4
		for _, r := range m.Needed {
			binary.BigEndian.PutUint32(buf[off:], uint32(r.Low))
			off += 4
			binary.BigEndian.PutUint32(buf[off:], uint32(r.High))
			off += 4
		}
	case KindCatchUpResp:
		binary.BigEndian.PutUint32(buf[off:], uint32(len(m.Decided)))
		off += 4
		for _, r := range m.Decided {
			off += putRecord(buf[off:], r)
		}
	case KindCatchUpSnapshot:
		binary.BigEndian.PutUint32(buf[off:], uint32(m.SnapshotLastID))
		off += 4
		binary.BigEndian.PutUint32(buf[off:], uint32(m.SnapshotLastView))
		off += 4
		binary.BigEndian.PutUint32(buf[off:], uint32(len(m.SnapshotBody)))
		off += 4
		copy(buf[off:], m.SnapshotBody)
	}
	return buf
}

// Decode parses the bit-exact wire form produced by Encode. decode(encode(m))
// == m and Encode(m)'s length == ByteSize(m) (property P4).
func Decode(buf []byte) (*Message, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("paxos: short message header")
	}
	m := &Message{
		Kind:     Kind(buf[0]),
		View:     int32(binary.BigEndian.Uint32(buf[1:5])),
		SentTime: int64(binary.BigEndian.Uint64(buf[5:13])),
	}
	payload := buf[headerSize:]

	switch m.Kind {
	case KindPrepare:
		if len(payload) < 4 {
			return nil, fmt.Errorf("paxos: short Prepare payload")
		}
		m.FirstUncommitted = int32(binary.BigEndian.Uint32(payload))
	case KindPrepareOK:
		if len(payload) < 4 {
			return nil, fmt.Errorf("paxos: short PrepareOK payload")
		}
		count := int(binary.BigEndian.Uint32(payload))
		off := 4
		m.Prepared = make([]InstanceRecord, 0, count)
		for i := 0; i < count; i++ {
			r, n, err := getRecord(payload[off:])
			if err != nil {
				return nil, err
			}
			m.Prepared = append(m.Prepared, r)
			off += n
		}
	case KindPropose:
		r, _, err := getRecord(payload)
		if err != nil {
			return nil, err
		}
		m.Instance = r
	case KindAccept:
		if len(payload) < 4 {
			return nil, fmt.Errorf("paxos: short Accept payload")
		}
		m.InstanceID = int32(binary.BigEndian.Uint32(payload))
	case KindAlive:
		// nothing to decode
	case KindCatchUpQuery:
		if len(payload) < 4 {
			return nil, fmt.Errorf("paxos: short CatchUpQuery payload")
		}
		count := int(binary.BigEndian.Uint32(payload))
		off := 4
		m.Needed = make([]idRange, 0, count)
		for i := 0; i < count; i++ {
			if len(payload) < off+8 {
				return nil, fmt.Errorf("paxos: truncated CatchUpQuery range")
			}
			lo := int32(binary.BigEndian.Uint32(payload[off:]))
			hi := int32(binary.BigEndian.Uint32(payload[off+4:]))
			m.Needed = append(m.Needed, idRange{Low: lo, High: hi})
			off += 8
		}
	case KindCatchUpResp:
		if len(payload) < 4 {
			return nil, fmt.Errorf("paxos: short CatchUpResp payload")
		}
		count := int(binary.BigEndian.Uint32(payload))
		off := 4
		m.Decided = make([]InstanceRecord, 0, count)
		for i := 0; i < count; i++ {
			r, n, err := getRecord(payload[off:])
			if err != nil {
				return nil, err
			}
			m.Decided = append(m.Decided, r)
			off += n
		}
	case KindCatchUpSnapshot:
		if len(payload) < 12 {
			return nil, fmt.Errorf("paxos: short CatchUpSnapshot payload")
		}
		m.SnapshotLastID = int32(binary.BigEndian.Uint32(payload[0:4]))
		m.SnapshotLastView = int32(binary.BigEndian.Uint32(payload[4:8]))
		length := int(binary.BigEndian.Uint32(payload[8:12]))
		if len(payload) < 12+length {
			return nil, fmt.Errorf("paxos: truncated CatchUpSnapshot body")
		}
		m.SnapshotBody = append([]byte(nil), payload[12:12+length]...)
	default:
		return nil, fmt.Errorf("paxos: unknown message kind %d", m.Kind)
	}
	return m, nil
}
