package paxos

import "go.uber.org/zap"

// DecideHandler is invoked once per instance, the instant it becomes
// DECIDED, in the order decisions happen (which need not be id order). The
// Engine wires this to its in-order execution queue, which buffers
// out-of-order decisions (spec §4.6, "hand the entry to the Service adapter").
// A returned error is a StorageFailure/ProtocolViolation from execution
// and is fatal, same as everything else on the Dispatcher.
type DecideHandler func(inst *Instance) error

// Learner implements spec §4.6. Like Acceptor it keeps no state of its own
// beyond the Log entries' transient accepts sets; quorum bookkeeping lives
// on Instance itself so Acceptor and Learner can both touch the same
// entry without duplicating counters.
type Learner struct {
	cfg     *Config
	log     *Log
	storage StableStorage
	logger  *zap.SugaredLogger

	onDecide    DecideHandler
	stopPropose func(id int32)
	ballotDone  func() error
}

func newLearner(cfg *Config, log *Log, storage StableStorage, logger *zap.SugaredLogger) *Learner {
	return &Learner{cfg: cfg, log: log, storage: storage, logger: logger}
}

// wireProposer connects the two Proposer callbacks the spec requires
// Learner to drive: stopPropose(id) when a quorum lands, and
// ballotFinished() so the proposal window refills. Called once during
// Engine construction, after both components exist (breaks the
// Proposer<->Learner construction cycle).
func (l *Learner) wireProposer(stopPropose func(id int32), ballotDone func() error) {
	l.stopPropose = stopPropose
	l.ballotDone = ballotDone
}

// HandleAccept processes an inbound Accept(id, v) from sender.
func (l *Learner) HandleAccept(sender int, msg *Message) error {
	return l.recordAndMaybeDecide(msg.InstanceID, sender, msg.View)
}

// RecordLocalAccept counts the local replica's own implicit accept, issued
// the moment its Proposer originates or re-owns a Propose (spec §4.6,
// "count a local Accept implicitly when the local replica itself issued
// Propose").
func (l *Learner) RecordLocalAccept(id int32, localID int, view int32) error {
	return l.recordAndMaybeDecide(id, localID, view)
}

func (l *Learner) recordAndMaybeDecide(id int32, sender int, view int32) error {
	inst := l.log.getOrCreate(id)
	if inst == nil {
		return nil // already truncated past; settled
	}
	if !inst.recordAccept(sender, view) {
		return nil
	}
	if inst.State == StateDecided {
		return nil
	}
	if inst.acceptCount() <= l.cfg.N/2 {
		return nil
	}
	inst.markDecided(inst.View, inst.Value)
	return l.adoptDecided(inst)
}

// SetOnDecide registers the Engine's in-order execution callback.
func (l *Learner) SetOnDecide(h DecideHandler) {
	l.onDecide = h
}

// AdoptDecidedRecord applies a DECIDED record learned out-of-band (a
// CatchUpResp entry, never a vote the local replica tallied itself) to the
// log and fires the same Decide side effects as a locally-reached quorum.
func (l *Learner) AdoptDecidedRecord(rec InstanceRecord) error {
	inst := l.log.getOrCreate(rec.ID)
	if inst == nil || inst.State == StateDecided {
		return nil
	}
	inst.markDecided(rec.View, rec.Value)
	return l.adoptDecided(inst)
}

// adoptDecided fires the Decide side effects (durable persist, stopPropose,
// execution handoff, window refill) for an instance just transitioned to
// DECIDED in the log, regardless of whether this replica itself counted a
// local Accept quorum for it. Callers must only invoke this once per
// instance, right after marking it DECIDED.
func (l *Learner) adoptDecided(inst *Instance) error {
	if err := l.storage.MarkDecided(inst.ID, inst.View, inst.Value); err != nil {
		return storageFailure(err)
	}
	if l.stopPropose != nil {
		l.stopPropose(inst.ID)
	}
	if l.onDecide != nil {
		if err := l.onDecide(inst); err != nil {
			return err
		}
	}
	if l.ballotDone != nil {
		return l.ballotDone()
	}
	return nil
}
