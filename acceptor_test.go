package paxos

import (
	"testing"

	"go.uber.org/zap"
)

func newTestAcceptor(t *testing.T, localID, n int) (*Acceptor, *inmemNetwork, *Log) {
	t.Helper()
	cfg := NewConfig(localID, n)
	log := newLog(0)
	storage := newMemStorage()
	net := newInmemNetwork(localID)
	enqueue := func(f func() error) { _ = f() }
	oracle := newLeaderOracle(cfg, net, enqueue, func(int, int32) error { return nil })
	t.Cleanup(oracle.Stop)
	a, err := newAcceptor(cfg, log, storage, net, oracle, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("newAcceptor: %v", err)
	}
	return a, net, log
}

func TestAcceptorHandlePrepareIgnoresStaleView(t *testing.T) {
	a, _, _ := newTestAcceptor(t, 0, 3)
	if err := a.AdoptView(5); err != nil {
		t.Fatalf("AdoptView: %v", err)
	}
	if err := a.HandlePrepare(1, &Message{Kind: KindPrepare, View: 2}); err != nil {
		t.Fatalf("HandlePrepare: %v", err)
	}
	if a.View() != 5 {
		t.Fatalf("a stale Prepare must not change the view, got %d", a.View())
	}
}

func TestAcceptorHandlePrepareAdoptsHigherView(t *testing.T) {
	a, net, _ := newTestAcceptor(t, 0, 3)
	var replies []*Message
	net.AddMessageListener(KindPrepareOK, func(sender int, msg *Message) { replies = append(replies, msg) })

	if err := a.HandlePrepare(1, &Message{Kind: KindPrepare, View: 3, FirstUncommitted: 0}); err != nil {
		t.Fatalf("HandlePrepare: %v", err)
	}
	if a.View() != 3 {
		t.Fatalf("expected adopted view 3, got %d", a.View())
	}
}

func TestAcceptorHandlePrepareReportsKnownAndDecidedInstances(t *testing.T) {
	a, _, log := newTestAcceptor(t, 0, 3)
	known := log.append(0, []byte("k"))
	known.setValue(0, []byte("k"))
	decided := log.append(0, []byte("d"))
	decided.markDecided(0, []byte("d"))
	log.getOrCreate(2) // leave id 2 UNKNOWN

	var reply *Message
	done := make(chan struct{}, 1)
	// wire a direct peer so HandlePrepare's SendTo has somewhere to go
	peer := newInmemNetwork(1)
	a.net.(*inmemNetwork).peers[1] = peer
	peer.AddMessageListener(KindPrepareOK, func(sender int, msg *Message) {
		reply = msg
		done <- struct{}{}
	})

	if err := a.HandlePrepare(1, &Message{Kind: KindPrepare, View: 0, FirstUncommitted: 0}); err != nil {
		t.Fatalf("HandlePrepare: %v", err)
	}
	<-done
	if len(reply.Prepared) != 2 {
		t.Fatalf("expected 2 settled instances reported (KNOWN+DECIDED), got %d: %+v", len(reply.Prepared), reply.Prepared)
	}
}

func TestAcceptorHandleProposeRejectsStaleView(t *testing.T) {
	a, _, log := newTestAcceptor(t, 0, 3)
	if err := a.AdoptView(4); err != nil {
		t.Fatalf("AdoptView: %v", err)
	}
	if err := a.HandlePropose(1, &Message{Kind: KindPropose, View: 2, Instance: InstanceRecord{ID: 0, Value: []byte("x")}}); err != nil {
		t.Fatalf("HandlePropose: %v", err)
	}
	if inst := log.getInstance(0); inst != nil {
		t.Fatalf("a stale Propose must not create a log entry, got %+v", inst)
	}
}

func TestAcceptorHandleProposeSetsValueAndReplies(t *testing.T) {
	a, net, log := newTestAcceptor(t, 0, 3)
	peer := newInmemNetwork(1)
	a.net.(*inmemNetwork).peers[1] = peer
	_ = net
	var reply *Message
	done := make(chan struct{}, 1)
	peer.AddMessageListener(KindAccept, func(sender int, msg *Message) {
		reply = msg
		done <- struct{}{}
	})

	if err := a.HandlePropose(1, &Message{Kind: KindPropose, View: 1, Instance: InstanceRecord{ID: 0, Value: []byte("v")}}); err != nil {
		t.Fatalf("HandlePropose: %v", err)
	}
	<-done
	inst := log.getInstance(0)
	if inst == nil || string(inst.Value) != "v" || inst.View != 1 {
		t.Fatalf("expected instance 0 set to (view=1, value=v), got %+v", inst)
	}
	if reply.Kind != KindAccept || reply.InstanceID != 0 || reply.View != 1 {
		t.Fatalf("unexpected Accept reply: %+v", reply)
	}
}

func TestAcceptorHandleProposeBelowTruncationIsNoop(t *testing.T) {
	a, _, log := newTestAcceptor(t, 0, 3)
	log.append(0, []byte("a"))
	log.truncateBelow(1)
	if err := a.HandlePropose(1, &Message{Kind: KindPropose, View: 0, Instance: InstanceRecord{ID: 0, Value: []byte("x")}}); err != nil {
		t.Fatalf("HandlePropose: %v", err)
	}
	if log.getInstance(0) != nil {
		t.Fatalf("a truncated id must never be recreated")
	}
}
