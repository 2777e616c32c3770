package paxos

import "testing"

func TestRequestEncodeDecodeRoundTrip(t *testing.T) {
	r := Request{ID: RequestID{ClientID: 7, SequenceNo: 3}, Payload: []byte("hello")}
	buf := make([]byte, r.byteSize())
	n := encodeRequest(buf, r)
	if n != len(buf) {
		t.Fatalf("encodeRequest wrote %d bytes, byteSize()=%d", n, len(buf))
	}
	decoded, consumed, err := decodeRequest(buf)
	if err != nil {
		t.Fatalf("decodeRequest: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("expected to consume %d bytes, got %d", len(buf), consumed)
	}
	if decoded.ID != r.ID || string(decoded.Payload) != string(r.Payload) {
		t.Fatalf("round trip mismatch: got %+v", decoded)
	}
}

func TestDecodeBatchPreservesOrder(t *testing.T) {
	reqs := []Request{
		{ID: RequestID{ClientID: 1, SequenceNo: 1}, Payload: []byte("a")},
		{ID: RequestID{ClientID: 1, SequenceNo: 2}, Payload: []byte("bb")},
		{ID: RequestID{ClientID: 2, SequenceNo: 1}, Payload: []byte("ccc")},
	}
	size := 4
	for _, r := range reqs {
		size += r.byteSize()
	}
	buf := make([]byte, size)
	used := 4
	for _, r := range reqs {
		used += encodeRequest(buf[used:], r)
	}
	putUint32 := func(b []byte, v uint32) {
		b[0] = byte(v >> 24)
		b[1] = byte(v >> 16)
		b[2] = byte(v >> 8)
		b[3] = byte(v)
	}
	putUint32(buf[:4], uint32(len(reqs)))

	decoded, err := decodeBatch(buf[:used])
	if err != nil {
		t.Fatalf("decodeBatch: %v", err)
	}
	if len(decoded) != len(reqs) {
		t.Fatalf("expected %d requests, got %d", len(reqs), len(decoded))
	}
	for i, r := range reqs {
		if decoded[i].ID != r.ID || string(decoded[i].Payload) != string(r.Payload) {
			t.Fatalf("request %d mismatch: got %+v want %+v", i, decoded[i], r)
		}
	}
}

func TestDecodeBatchEmptyIsNoOp(t *testing.T) {
	decoded, err := decodeBatch(noOpValue)
	if err != nil {
		t.Fatalf("decodeBatch(noOpValue): %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected 0 requests from a NoOp batch, got %d", len(decoded))
	}
}

func TestDecodeRequestTruncatedErrors(t *testing.T) {
	if _, _, err := decodeRequest([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error decoding a truncated request header")
	}
}
