package paxos

import (
	"testing"

	"go.uber.org/zap"
)

// newTestProposer wires a single-replica Acceptor/Learner/Proposer triple
// over an in-memory Retransmitter, enough to exercise the state machine
// without a full Engine/Dispatcher.
func newTestProposer(t *testing.T, localID, n int) (*Proposer, *Log, *Acceptor, *Learner) {
	t.Helper()
	cfg := NewConfig(localID, n)
	log := newLog(0)
	storage := newMemStorage()
	net := newInmemNetwork(localID)
	enqueue := func(f func() error) { _ = f() }
	oracle := newLeaderOracle(cfg, net, enqueue, func(int, int32) error { return nil })
	t.Cleanup(oracle.Stop)
	logger := zap.NewNop().Sugar()

	acceptor, err := newAcceptor(cfg, log, storage, net, oracle, logger)
	if err != nil {
		t.Fatalf("newAcceptor: %v", err)
	}
	learner := newLearner(cfg, log, storage, logger)
	retx := newRetransmitter(net, RetransmitTimeout, enqueue)
	t.Cleanup(retx.StopAll)
	proposer := newProposer(cfg, log, acceptor, learner, retx, logger)
	learner.wireProposer(proposer.stopPropose, proposer.ballotFinished)
	return proposer, log, acceptor, learner
}

func TestProposerPrepareNextViewSingleReplicaEntersPrepared(t *testing.T) {
	p, _, acceptor, _ := newTestProposer(t, 0, 1)
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	if p.State() != ProposerPrepared {
		t.Fatalf("a lone replica trivially has a majority of itself, expected PREPARED, got %s", p.State())
	}
	if acceptor.View() != 1 {
		t.Fatalf("expected view 1 (the first view > 0 that replica 0 owns in an N=1 group), got %d", acceptor.View())
	}
}

func TestProposerPrepareNextViewMultiReplicaStaysPreparing(t *testing.T) {
	p, _, _, _ := newTestProposer(t, 0, 3)
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	if p.State() != ProposerPreparing {
		t.Fatalf("with no PrepareOK yet in a 3-replica group, expected PREPARING, got %s", p.State())
	}
}

func TestProposerPrepareNextViewRejectsReentry(t *testing.T) {
	p, _, _, _ := newTestProposer(t, 0, 3)
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	if err := p.prepareNextView(); err == nil {
		t.Fatalf("expected a ProtocolViolation calling prepareNextView twice without stopProposer")
	}
}

func TestProposerHandlePrepareOKReachesMajorityAndProposes(t *testing.T) {
	p, log, acceptor, _ := newTestProposer(t, 0, 3)
	req := Request{ID: RequestID{ClientID: 1, SequenceNo: 1}, Payload: []byte("hi")}
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	if err := p.Propose(req); err != nil {
		t.Fatalf("Propose while PREPARING should just enqueue: %v", err)
	}
	if len(p.pending) != 1 {
		t.Fatalf("expected the request queued pending preparation, got %d", len(p.pending))
	}

	if err := p.HandlePrepareOK(1, &Message{View: acceptor.View()}); err != nil {
		t.Fatalf("HandlePrepareOK: %v", err)
	}
	if p.State() != ProposerPrepared {
		t.Fatalf("2 of 3 (self+1) should reach majority, expected PREPARED, got %s", p.State())
	}
	if len(p.pending) != 0 {
		t.Fatalf("entering PREPARED must flush the pending queue into a batch")
	}
	if log.getState(0) != StateKnown {
		t.Fatalf("expected instance 0 proposed (KNOWN), got %s", log.getState(0))
	}
}

func TestProposerProposeWhileInactiveErrors(t *testing.T) {
	p, _, _, _ := newTestProposer(t, 0, 3)
	err := p.Propose(Request{ID: RequestID{ClientID: 1, SequenceNo: 1}})
	if err != ErrInactive {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestProposerDuplicateRequestIsIgnored(t *testing.T) {
	// N=3 with no PrepareOK keeps the proposer PREPARING, so the first
	// request stays in the pending queue where the duplicate check applies.
	p, _, _, _ := newTestProposer(t, 0, 3)
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	req := Request{ID: RequestID{ClientID: 1, SequenceNo: 1}, Payload: []byte("a")}
	if err := p.Propose(req); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	firstNext := p.log.getNextId()
	if err := p.Propose(req); err != nil {
		t.Fatalf("Propose (duplicate): %v", err)
	}
	if len(p.pending) != 1 {
		t.Fatalf("a duplicate RequestID already pending must not be queued again, got %d pending", len(p.pending))
	}
	if p.log.getNextId() != firstNext {
		t.Fatalf("a duplicate RequestID must not append a new log entry")
	}
}

func TestProposerStopProposerResetsState(t *testing.T) {
	p, _, _, _ := newTestProposer(t, 0, 1)
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	p.stopProposer()
	if p.State() != ProposerInactive {
		t.Fatalf("expected INACTIVE after stopProposer, got %s", p.State())
	}
	if len(p.proposeHandles) != 0 || len(p.pending) != 0 {
		t.Fatalf("stopProposer must clear pending requests and outstanding handles")
	}
}

func TestProposerFillsGapsWithNoOpOnNewView(t *testing.T) {
	p, log, acceptor, _ := newTestProposer(t, 0, 1)
	// simulate an orphaned gap left by a previous (never-existing) leader
	log.getOrCreate(2)
	if err := p.prepareNextView(); err != nil {
		t.Fatalf("prepareNextView: %v", err)
	}
	// a lone replica's own implicit accept is already a majority, so the
	// NoOp is decided as soon as it is proposed
	if log.getState(2) != StateDecided {
		t.Fatalf("expected gap id 2 filled with NoOp and DECIDED, got %s", log.getState(2))
	}
	inst := log.getInstance(2)
	if string(inst.Value) != string(noOpValue) {
		t.Fatalf("expected NoOp value at the filled gap, got %q", inst.Value)
	}
	if inst.View != acceptor.View() {
		t.Fatalf("filled gap must carry the new view")
	}
}
