package paxos

import "encoding/binary"

// RequestID identifies a client request for pending-queue de-duplication
// (spec §3: "Request... RequestId = (clientId, sequenceNo). Equality is by
// RequestId").
type RequestID struct {
	ClientID   uint64
	SequenceNo uint64
}

// Request is the opaque-to-core unit the Proposer batches into a single
// log entry's value. Its own encoding is self-delimiting so several
// requests can be concatenated back-to-back inside one batch buffer with
// no external length table (spec §4.7 sendNextProposal step 3: "the reader
// knows record boundaries via request self-delimiting encoding").
type Request struct {
	ID      RequestID
	Payload []byte
}

// byteSize is exactly the number of bytes encodeRequest writes.
func (r Request) byteSize() int {
	return 8 + 8 + 4 + len(r.Payload)
}

func encodeRequest(buf []byte, r Request) int {
	binary.BigEndian.PutUint64(buf[0:8], r.ID.ClientID)
	binary.BigEndian.PutUint64(buf[8:16], r.ID.SequenceNo)
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(r.Payload)))
	copy(buf[20:], r.Payload)
	return r.byteSize()
}

// decodeRequest reads one self-delimited Request from the front of buf,
// returning it and the number of bytes consumed.
func decodeRequest(buf []byte) (Request, int, error) {
	if len(buf) < 20 {
		return Request{}, 0, protocolViolation("truncated request header: %d bytes", len(buf))
	}
	clientID := binary.BigEndian.Uint64(buf[0:8])
	seq := binary.BigEndian.Uint64(buf[8:16])
	n := binary.BigEndian.Uint32(buf[16:20])
	end := 20 + int(n)
	if end > len(buf) {
		return Request{}, 0, protocolViolation("truncated request payload: need %d, have %d", end, len(buf))
	}
	payload := append([]byte(nil), buf[20:end]...)
	return Request{ID: RequestID{ClientID: clientID, SequenceNo: seq}, Payload: payload}, end, nil
}

// decodeBatch splits a Propose value (count(4) + that many self-delimited
// Requests) back into individual Requests, in order (spec §4.7
// sendNextProposal steps 1-4, inverted).
func decodeBatch(buf []byte) ([]Request, error) {
	if len(buf) < 4 {
		return nil, protocolViolation("truncated batch count: %d bytes", len(buf))
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	reqs := make([]Request, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		r, n, err := decodeRequest(buf[off:])
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
		off += n
	}
	return reqs, nil
}
