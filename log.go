package paxos

import "fmt"

// Log is the ordered map of instance id -> *Instance described in spec §3/§4.3.
// Ids form a dense prefix [first, next); entries below the snapshot
// watermark are discardable. Like the teacher's logProviderProxy, it is
// only ever touched from inside the Dispatcher loop.
type Log struct {
	entries map[int32]*Instance
	first   int32 // lowest id still held (>= last snapshot id)
	next    int32 // next id append() will assign
}

func newLog(firstID int32) *Log {
	return &Log{
		entries: make(map[int32]*Instance),
		first:   firstID,
		next:    firstID,
	}
}

// getInstance returns the entry at id, or nil if it has never existed or
// has been truncated away.
func (l *Log) getInstance(id int32) *Instance {
	return l.entries[id]
}

// getOrCreate returns the entry at id, allocating an UNKNOWN one (and any
// UNKNOWN gap entries below it) if this is the first time id is mentioned —
// the Acceptor/Learner-side creation path from spec §3's Lifecycles note.
func (l *Log) getOrCreate(id int32) *Instance {
	if id < l.first {
		return nil // already truncated; caller must treat as DECIDED
	}
	for gap := l.next; gap <= id; gap++ {
		l.entries[gap] = newInstance(gap)
	}
	if id >= l.next {
		l.next = id + 1
	}
	return l.entries[id]
}

// append assigns id = next, marks it KNOWN with value under view, and
// advances next. Used by the Proposer when it originates a new batch
// (spec §4.3).
func (l *Log) append(view int32, value []byte) *Instance {
	id := l.next
	inst := &Instance{ID: id, View: view, Value: value, State: StateKnown}
	l.entries[id] = inst
	l.next++
	return inst
}

// getNextId returns the id the next append() will assign.
func (l *Log) getNextId() int32 {
	return l.next
}

// firstUncommitted returns the lowest id below which all entries are
// DECIDED (or truncated past). It's recomputed cheaply by scanning forward
// from the log's current low-water mark; callers that need it on every
// message should cache it on the owning component instead of calling this
// in a hot loop.
func (l *Log) firstUncommitted() int32 {
	id := l.first
	for id < l.next {
		inst, ok := l.entries[id]
		if !ok || inst.State != StateDecided {
			break
		}
		id++
	}
	return id
}

// getState reports the state of id, treating ids below the truncation
// watermark as DECIDED per invariant 6.
func (l *Log) getState(id int32) State {
	if id < l.first {
		return StateDecided
	}
	if inst, ok := l.entries[id]; ok {
		return inst.State
	}
	return StateUnknown
}

// truncateBelow discards all entries with id < watermark. The caller
// (SnapshotManager) must only invoke this once the service has applied
// every entry up to watermark (spec §3 Log truncation contract).
func (l *Log) truncateBelow(watermark int32) {
	if watermark <= l.first {
		return
	}
	for id := l.first; id < watermark && id < l.next; id++ {
		delete(l.entries, id)
	}
	l.first = watermark
	if l.next < l.first {
		l.next = l.first
	}
}

// logByteSize sums the approximate footprint of all entries currently held,
// excluding anything truncated away — the quantity spec §4.8's snapshot
// policy thresholds against.
func (l *Log) logByteSize() int {
	total := 0
	for _, inst := range l.entries {
		total += inst.byteSize()
	}
	return total
}

// checkPrefixInvariant validates invariant 5 (ids form a dense prefix
// [first, next)) — used by tests, never on the hot path.
func (l *Log) checkPrefixInvariant() error {
	if l.next < l.first {
		return fmt.Errorf("paxos: log invariant violated: next %d < first %d", l.next, l.first)
	}
	return nil
}
