package paxos

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// ProposerState is the three-state machine of spec §4.7.
type ProposerState int

const (
	ProposerInactive ProposerState = iota
	ProposerPreparing
	ProposerPrepared
)

func (s ProposerState) String() string {
	switch s {
	case ProposerInactive:
		return "INACTIVE"
	case ProposerPreparing:
		return "PREPARING"
	case ProposerPrepared:
		return "PREPARED"
	default:
		return "INVALID"
	}
}

// noOpValue is a batch encoding zero requests: just the 4-byte count
// header. decodeBatch on it yields an empty slice, so NoOp entries need no
// special case anywhere downstream of the log.
var noOpValue = []byte{0, 0, 0, 0}

// Proposer implements spec §4.7: the leader-side state machine driving
// Prepare/Propose and the batching client-request pipeline.
type Proposer struct {
	cfg      *Config
	log      *Log
	acceptor *Acceptor
	learner  *Learner
	retx     *Retransmitter
	logger   *zap.SugaredLogger

	state ProposerState

	preparedSet    map[int]bool
	prepareHandle  *Handle
	prepareFirstUC int32

	proposeHandles map[int32]*Handle

	pending    []Request
	pendingSet map[RequestID]bool

	lastRetransmitted int32

	// ballotToken correlates every log line belonging to one
	// prepareNextView round through its PREPARED transition.
	ballotToken string
}

func newProposer(cfg *Config, log *Log, acceptor *Acceptor, learner *Learner, retx *Retransmitter, logger *zap.SugaredLogger) *Proposer {
	return &Proposer{
		cfg:            cfg,
		log:            log,
		acceptor:       acceptor,
		learner:        learner,
		retx:           retx,
		logger:         logger,
		proposeHandles: make(map[int32]*Handle),
		pendingSet:     make(map[RequestID]bool),
	}
}

// State reports the proposer's current state machine position.
func (p *Proposer) State() ProposerState { return p.state }

// prepareNextView is called on leader-change when the local replica
// believes it should be the new leader.
func (p *Proposer) prepareNextView() error {
	if p.state != ProposerInactive {
		return protocolViolation("prepareNextView called outside INACTIVE (state=%s)", p.state.String())
	}
	p.preparedSet = make(map[int]bool)
	p.state = ProposerPreparing
	p.ballotToken = newInstanceToken()

	nextView := p.cfg.nextViewForSelf(p.acceptor.View())
	if err := p.acceptor.AdoptView(nextView); err != nil {
		p.state = ProposerInactive
		return err
	}
	p.logger.Infow("preparing next view", "view", nextView, "ballot", p.ballotToken)

	p.prepareFirstUC = p.log.firstUncommitted()
	// the leader trivially knows its own log state; count itself first so
	// a single-replica or already-near-quorum cluster can proceed at once.
	p.preparedSet[p.cfg.LocalID] = true

	msg := &Message{Kind: KindPrepare, View: nextView, FirstUncommitted: p.prepareFirstUC}
	dests := otherReplicas(p.cfg)
	if len(dests) == 0 {
		return p.maybeEnterPrepared()
	}
	p.prepareHandle = p.retx.StartTransmitting(msg, dests)
	return p.maybeEnterPrepared()
}

func otherReplicas(cfg *Config) []int {
	dests := make([]int, 0, cfg.N-1)
	for i := 0; i < cfg.N; i++ {
		if i != cfg.LocalID {
			dests = append(dests, i)
		}
	}
	return dests
}

// HandlePrepareOK processes an inbound PrepareOK(v, prepared[]) from sender.
func (p *Proposer) HandlePrepareOK(sender int, msg *Message) error {
	if p.state != ProposerPreparing && p.state != ProposerPrepared {
		return nil
	}
	if msg.View != p.acceptor.View() {
		return nil
	}
	if p.state == ProposerPrepared {
		return nil
	}

	for _, rec := range msg.Prepared {
		if err := p.reconcile(rec); err != nil {
			return err
		}
	}

	p.preparedSet[sender] = true
	if p.prepareHandle != nil {
		p.prepareHandle.Stop(sender)
	}
	return p.maybeEnterPrepared()
}

// reconcile merges one PrepareOK record into the local log honouring
// invariants 2 and 3.
func (p *Proposer) reconcile(rec InstanceRecord) error {
	local := p.log.getOrCreate(rec.ID)
	if local == nil {
		return nil // already truncated past; settled by snapshot
	}
	if local.State == StateDecided {
		return nil
	}
	switch rec.State {
	case StateDecided:
		local.markDecided(rec.View, rec.Value)
		// the Learner's quorum bookkeeping is moot here, but its decide
		// side effects (execution handoff, stopPropose) still need to
		// fire for an instance this replica never counted Accepts for.
		return p.learner.adoptDecided(local)
	case StateKnown:
		if rec.View > local.View {
			local.setValue(rec.View, rec.Value)
		}
	}
	return nil
}

func (p *Proposer) maybeEnterPrepared() error {
	if p.state != ProposerPreparing {
		return nil
	}
	if len(p.preparedSet) <= p.cfg.N/2 {
		return nil
	}
	p.state = ProposerPrepared
	p.logger.Infow("entered PREPARED", "view", p.acceptor.View(), "ballot", p.ballotToken)
	if p.prepareHandle != nil {
		p.prepareHandle.Stop()
		p.prepareHandle = nil
	}
	return p.stopPreparingStartProposing()
}

func (p *Proposer) stopPreparingStartProposing() error {
	view := p.acceptor.View()
	next := p.log.getNextId()
	for id := p.prepareFirstUC; id < next; id++ {
		inst := p.log.getInstance(id)
		var err error
		switch {
		case inst == nil:
			continue
		case inst.State == StateDecided:
			continue
		case inst.State == StateKnown:
			err = p.continueProposal(inst, view)
		case inst.State == StateUnknown:
			err = p.fillWithNoOperation(inst, view)
		}
		if err != nil {
			return err
		}
	}
	return p.sendNextProposal()
}

// continueProposal re-owns an orphaned KNOWN entry under the new view and
// resumes retransmitting it.
func (p *Proposer) continueProposal(inst *Instance, view int32) error {
	inst.setValue(view, inst.Value)
	return p.startProposeRetransmit(inst)
}

// fillWithNoOperation occupies a gap the old leader never filled with the
// well-known NoOp value, so the window can advance past it.
func (p *Proposer) fillWithNoOperation(inst *Instance, view int32) error {
	inst.setValue(view, noOpValue)
	return p.startProposeRetransmit(inst)
}

func (p *Proposer) startProposeRetransmit(inst *Instance) error {
	if err := p.learner.RecordLocalAccept(inst.ID, p.cfg.LocalID, inst.View); err != nil {
		return err
	}
	msg := &Message{Kind: KindPropose, View: inst.View, Instance: recordFromInstance(inst)}
	handle := p.retx.StartTransmitting(msg, otherReplicas(p.cfg))
	p.proposeHandles[inst.ID] = handle
	return nil
}

// Propose enqueues a client request (spec §4.7 propose(request)).
func (p *Proposer) Propose(req Request) error {
	if p.state == ProposerInactive {
		return ErrInactive
	}
	if p.pendingSet[req.ID] {
		return nil
	}
	p.pendingSet[req.ID] = true
	p.pending = append(p.pending, req)
	return p.sendNextProposal()
}

// sendNextProposal drains as many batches as the proposal window and
// pending queue allow, then falls back to gap retransmission.
func (p *Proposer) sendNextProposal() error {
	for {
		if p.state == ProposerPreparing {
			p.retransmitGaps()
			return nil
		}
		if len(p.pending) == 0 {
			p.retransmitGaps()
			return nil
		}
		if !p.withinWindow() {
			p.retransmitGaps()
			return nil
		}
		if err := p.appendBatch(); err != nil {
			return err
		}
	}
}

func (p *Proposer) withinWindow() bool {
	firstUC := p.log.firstUncommitted()
	return p.log.getNextId() < firstUC+int32(p.cfg.WindowSize)
}

func (p *Proposer) appendBatch() error {
	view := p.acceptor.View()
	first := p.pending[0]
	size := maxInt(p.cfg.BatchSize, 4+first.byteSize())
	buf := make([]byte, size)

	used := 4
	n := copy(buf[used:], encodeOne(first))
	used += n
	count := uint32(1)
	consumed := 1

	for consumed < len(p.pending) {
		next := p.pending[consumed]
		if used+next.byteSize() > size {
			break
		}
		nn := copy(buf[used:], encodeOne(next))
		used += nn
		count++
		consumed++
	}
	binary.BigEndian.PutUint32(buf[0:4], count)

	for _, req := range p.pending[:consumed] {
		delete(p.pendingSet, req.ID)
	}
	p.pending = p.pending[consumed:]

	inst := p.log.append(view, buf[:used])
	return p.startProposeRetransmit(inst)
}

func encodeOne(r Request) []byte {
	buf := make([]byte, r.byteSize())
	encodeRequest(buf, r)
	return buf
}

// retransmitGaps force-resends Propose handles for still-undecided ids in
// [lastRetransmitted, nextId), advancing lastRetransmitted monotonically.
// This is the window-stall safety net: quorum-driven retransmission alone
// can starve an entry if the window is full and no new Accept ever
// arrives to trigger ballotFinished.
func (p *Proposer) retransmitGaps() {
	bound := p.log.getNextId()
	for id := p.lastRetransmitted; id < bound; id++ {
		if handle, ok := p.proposeHandles[id]; ok {
			handle.ForceRetransmit()
		}
	}
	p.lastRetransmitted = bound
}

// stopPropose cancels retransmission of the Propose for id, wholly or
// (with dest given) for one destination only.
func (p *Proposer) stopPropose(id int32, dest ...int) {
	handle, ok := p.proposeHandles[id]
	if !ok {
		return
	}
	if len(dest) == 0 {
		handle.Stop()
		delete(p.proposeHandles, id)
		return
	}
	handle.Stop(dest[0])
}

// HandleAccept lets the proposer shortcut per-destination retransmission
// as soon as it sees an individual Accept, independent of the Learner's
// quorum bookkeeping (spec §4.6).
func (p *Proposer) HandleAccept(sender int, msg *Message) error {
	p.stopPropose(msg.InstanceID, sender)
	return nil
}

// ballotFinished is called by the Learner after a Decide; it refills the
// proposal window.
func (p *Proposer) ballotFinished() error {
	return p.sendNextProposal()
}

// stopProposer is called on leader loss.
func (p *Proposer) stopProposer() {
	p.state = ProposerInactive
	p.pending = nil
	p.pendingSet = make(map[RequestID]bool)
	if p.prepareHandle != nil {
		p.prepareHandle.Stop()
		p.prepareHandle = nil
	}
	for id, h := range p.proposeHandles {
		h.Stop()
		delete(p.proposeHandles, id)
	}
}
