package paxos

import (
	"testing"

	"go.uber.org/zap"
)

func newTestLearner(t *testing.T, n int) (*Learner, *Log, *memStorage) {
	t.Helper()
	cfg := NewConfig(0, n)
	log := newLog(0)
	storage := newMemStorage()
	return newLearner(cfg, log, storage, zap.NewNop().Sugar()), log, storage
}

func TestLearnerDecidesOnMajority(t *testing.T) {
	l, log, storage := newTestLearner(t, 3)
	log.getOrCreate(0).setValue(1, []byte("v"))

	var decided []*Instance
	l.SetOnDecide(func(inst *Instance) error { decided = append(decided, inst); return nil })

	if err := l.HandleAccept(0, &Message{InstanceID: 0, View: 1}); err != nil {
		t.Fatalf("HandleAccept: %v", err)
	}
	if log.getState(0) == StateDecided {
		t.Fatalf("1 of 3 accepts must not decide yet")
	}
	if err := l.HandleAccept(1, &Message{InstanceID: 0, View: 1}); err != nil {
		t.Fatalf("HandleAccept: %v", err)
	}
	if log.getState(0) != StateDecided {
		t.Fatalf("2 of 3 accepts (majority) must decide")
	}
	if len(decided) != 1 || decided[0].ID != 0 {
		t.Fatalf("expected exactly one onDecide callback for id 0, got %+v", decided)
	}
	if _, _, ok := storage.DecidedValue(0); !ok {
		t.Fatalf("decision must be durably persisted")
	}
}

func TestLearnerRecordLocalAcceptCountsTowardQuorum(t *testing.T) {
	l, log, _ := newTestLearner(t, 3)
	log.getOrCreate(0).setValue(2, []byte("v"))
	if err := l.RecordLocalAccept(0, 0, 2); err != nil {
		t.Fatalf("RecordLocalAccept: %v", err)
	}
	if err := l.HandleAccept(1, &Message{InstanceID: 0, View: 2}); err != nil {
		t.Fatalf("HandleAccept: %v", err)
	}
	if log.getState(0) != StateDecided {
		t.Fatalf("local implicit accept + 1 remote accept should reach majority of 3")
	}
}

func TestLearnerFiresStopProposeAndBallotDoneOnDecide(t *testing.T) {
	l, log, _ := newTestLearner(t, 3)
	log.getOrCreate(0).setValue(1, []byte("v"))

	var stopped int32 = -1
	ballotDone := false
	l.wireProposer(func(id int32) { stopped = id }, func() error { ballotDone = true; return nil })

	_ = l.HandleAccept(0, &Message{InstanceID: 0, View: 1})
	_ = l.HandleAccept(1, &Message{InstanceID: 0, View: 1})

	if stopped != 0 {
		t.Fatalf("expected stopPropose(0) to fire, got stopped=%d", stopped)
	}
	if !ballotDone {
		t.Fatalf("expected ballotDone to fire on decide")
	}
}

func TestLearnerAdoptDecidedRecordIsIdempotent(t *testing.T) {
	l, log, _ := newTestLearner(t, 3)
	calls := 0
	l.SetOnDecide(func(inst *Instance) error { calls++; return nil })

	rec := InstanceRecord{ID: 5, View: 2, State: StateDecided, Value: []byte("x")}
	if err := l.AdoptDecidedRecord(rec); err != nil {
		t.Fatalf("AdoptDecidedRecord: %v", err)
	}
	if err := l.AdoptDecidedRecord(rec); err != nil {
		t.Fatalf("AdoptDecidedRecord (replay): %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 onDecide call across both applications, got %d", calls)
	}
	if log.getState(5) != StateDecided {
		t.Fatalf("expected id 5 DECIDED")
	}
}

func TestLearnerIgnoresAcceptsBelowTruncation(t *testing.T) {
	l, log, _ := newTestLearner(t, 3)
	log.append(0, []byte("a"))
	log.truncateBelow(1)
	if err := l.HandleAccept(0, &Message{InstanceID: 0, View: 0}); err != nil {
		t.Fatalf("HandleAccept on truncated id must not error: %v", err)
	}
}
