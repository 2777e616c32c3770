package paxos

// Kind is the wire discriminator for the eight message types of spec §6.
// Modeled as a closed tagged variant (design note: "runtime type dispatch
// on messages" -> closed tagged variant), with the codec's type byte
// selecting which fields below are meaningful.
type Kind byte

const (
	KindPrepare Kind = iota + 1
	KindPrepareOK
	KindPropose
	KindAccept
	KindAlive
	KindCatchUpQuery
	KindCatchUpResp
	KindCatchUpSnapshot
)

func (k Kind) String() string {
	switch k {
	case KindPrepare:
		return "Prepare"
	case KindPrepareOK:
		return "PrepareOK"
	case KindPropose:
		return "Propose"
	case KindAccept:
		return "Accept"
	case KindAlive:
		return "Alive"
	case KindCatchUpQuery:
		return "CatchUpQuery"
	case KindCatchUpResp:
		return "CatchUpResp"
	case KindCatchUpSnapshot:
		return "CatchUpSnapshot"
	default:
		return "Unknown"
	}
}

// InstanceRecord is the wire form of a ConsensusInstance (spec §6):
// id(4) view(4) state(4, ordinal) len(4, -1 for absent) bytes. It is
// distinct from Instance, which additionally carries the transient
// accepts set that is never put on the wire.
type InstanceRecord struct {
	ID    int32
	View  int32
	State State
	Value []byte // nil means "absent"
}

func recordFromInstance(inst *Instance) InstanceRecord {
	return InstanceRecord{ID: inst.ID, View: inst.View, State: inst.State, Value: inst.Value}
}

// idRange is a half-open [Low, High) span of instance ids, used by
// CatchUpQuery to ask for a set of missing ids compactly (spec §4.8
// leaves the exact catch-up payload format unspecified beyond "listing
// the ids/ranges it needs").
type idRange struct {
	Low, High int32
}

// Message is the single struct every wire message decodes into; exactly
// one subset of its fields is meaningful, selected by Kind. SentTime is
// carried on the wire but no component of the core reads it, so it never
// gates protocol progress.
type Message struct {
	Kind     Kind
	View     int32
	SentTime int64 // ms since epoch; set on Alive heartbeats, read by nothing in the core

	// Prepare
	FirstUncommitted int32

	// PrepareOK
	Prepared []InstanceRecord

	// Propose
	Instance InstanceRecord

	// Accept
	InstanceID int32

	// CatchUpQuery
	Needed []idRange

	// CatchUpResp
	Decided []InstanceRecord

	// CatchUpSnapshot
	SnapshotLastID   int32
	SnapshotLastView int32
	SnapshotBody     []byte
}
