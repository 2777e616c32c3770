package main

import (
	"sync"

	"github.com/ugorji/go/codec"

	"github.com/lattica/paxos"
)

// StateMachine is the example replicated key-value Service adapter (spec
// §6 "Service adapter (consumed)"), grounded on the teacher's own
// cmd/kv/statemachine.go (Apply/Snapshot/Restore over a map[string][]byte
// guarded by a single RWMutex). It additionally keeps a per-request reply
// cache so a request re-delivered after a crash-recovery replay (spec §1:
// "at-most-once reply caching performed by the service adapter") returns
// its original reply instead of re-applying the mutation.
type StateMachine struct {
	mu     sync.RWMutex
	states map[string][]byte

	// replies caches the last reply for each client, keyed by clientID, so
	// the cache holds one entry per client rather than one per request.
	replies map[uint64]cachedReply

	lastExecuted int32
}

// cachedReply's fields are exported so the msgpack encoder includes them
// in kvSnapshot.
type cachedReply struct {
	Seq   uint64
	Reply []byte
}

func NewStateMachine() *StateMachine {
	return &StateMachine{states: map[string][]byte{}, replies: map[uint64]cachedReply{}}
}

// Execute applies req if it hasn't already been applied (by RequestID),
// returning the cached reply on a replay (paxos.Service).
func (m *StateMachine) Execute(instanceID int32, req paxos.Request) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.replies[req.ID.ClientID]; ok && cached.Seq == req.ID.SequenceNo {
		return cached.Reply, nil
	}

	cmd := DecodeCommand(req.Payload)
	var reply []byte
	switch cmd.Type {
	case CommandSet:
		m.states[cmd.Key] = cmd.Value
		reply = []byte("OK")
	case CommandUnset:
		delete(m.states, cmd.Key)
		reply = []byte("OK")
	}
	m.replies[req.ID.ClientID] = cachedReply{Seq: req.ID.SequenceNo, Reply: reply}
	return reply, nil
}

func (m *StateMachine) Keys() (keys []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key := range m.states {
		keys = append(keys, key)
	}
	return
}

func (m *StateMachine) Value(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.states[key]
	return v, ok
}

func (m *StateMachine) KeyValues() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keyValues := map[string][]byte{}
	for key, value := range m.states {
		keyValues[key] = append(([]byte)(nil), value...)
	}
	return keyValues
}

// kvSnapshot is the msgpack-encoded wire form of a StateMachine snapshot,
// grounded on the teacher's KVSMSnapshot.Write (a single Msgpack-encoded
// map), extended with the reply cache so a replica that installs this
// snapshot instead of replaying every instance still rejects duplicate
// client requests correctly.
type kvSnapshot struct {
	KeyValues map[string][]byte
	Replies   map[uint64]cachedReply
}

// MakeSnapshot serializes the service's current state (paxos.Service).
func (m *StateMachine) MakeSnapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := kvSnapshot{KeyValues: map[string][]byte{}, Replies: map[uint64]cachedReply{}}
	for k, v := range m.states {
		snap.KeyValues[k] = append([]byte(nil), v...)
	}
	for k, v := range m.replies {
		snap.Replies[k] = v
	}
	var out []byte
	err := codec.NewEncoderBytes(&out, &codec.MsgpackHandle{}).Encode(snap)
	return out, err
}

// UpdateToSnapshot replaces the service's state wholesale (paxos.Service).
func (m *StateMachine) UpdateToSnapshot(body []byte) error {
	var snap kvSnapshot
	if err := codec.NewDecoderBytes(body, &codec.MsgpackHandle{}).Decode(&snap); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = snap.KeyValues
	if m.states == nil {
		m.states = map[string][]byte{}
	}
	m.replies = snap.Replies
	if m.replies == nil {
		m.replies = map[uint64]cachedReply{}
	}
	return nil
}

// InstanceExecuted records the new execution watermark (paxos.Service).
func (m *StateMachine) InstanceExecuted(instanceID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastExecuted = instanceID
}
