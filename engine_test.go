package paxos

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeService is a minimal in-memory Service double: it echoes back the
// request payload and records execution order for assertions.
type fakeService struct {
	mu       sync.Mutex
	executed []Request
	snapshot []byte
}

func newFakeService() *fakeService { return &fakeService{} }

func (s *fakeService) Execute(instanceID int32, req Request) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = append(s.executed, req)
	return req.Payload, nil
}

func (s *fakeService) MakeSnapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.snapshot...), nil
}

func (s *fakeService) UpdateToSnapshot(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = append([]byte(nil), body...)
	return nil
}

func (s *fakeService) InstanceExecuted(instanceID int32) {}

func (s *fakeService) executedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executed)
}

// newTestGroup builds n fully-linked in-memory Engines, one per replica,
// none started yet.
func newTestGroup(t *testing.T, n int) ([]*Engine, []*fakeService) {
	t.Helper()
	nets := linkInmemNetworks(rangeInts(n))
	engines := make([]*Engine, n)
	services := make([]*fakeService, n)
	for i := 0; i < n; i++ {
		cfg := NewConfig(i, n, WithRetransmitTimeout(30*time.Millisecond))
		svc := newFakeService()
		services[i] = svc
		e, err := NewEngine(cfg, svc, nets[i], newMemStorage(), zap.NewNop().Sugar())
		if err != nil {
			t.Fatalf("NewEngine(%d): %v", i, err)
		}
		engines[i] = e
	}
	return engines, services
}

func rangeInts(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func startAll(t *testing.T, engines []*Engine) {
	t.Helper()
	for _, e := range engines {
		if err := e.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
}

func stopAll(engines []*Engine) {
	for _, e := range engines {
		_ = e.Stop()
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

// TestEngineHappyCommit exercises spec §8's basic scenario: in a 3-replica
// group replica 0, which owns the initial view 0, prepares view 3 (the next
// view it owns) and commits a single client proposal to every replica's
// state machine.
func TestEngineHappyCommit(t *testing.T) {
	engines, services := newTestGroup(t, 3)
	startAll(t, engines)
	defer stopAll(engines)

	waitFor(t, time.Second, func() bool { return engines[0].IsLeader() })

	future, err := engines[0].Propose(Request{ID: RequestID{ClientID: 1, SequenceNo: 1}, Payload: []byte("hello")})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	reply, err := future.Result()
	if err != nil {
		t.Fatalf("future.Result: %v", err)
	}
	if string(reply) != "hello" {
		t.Fatalf("expected echoed reply %q, got %q", "hello", reply)
	}

	for i, svc := range services {
		waitFor(t, time.Second, func() bool { return svc.executedCount() == 1 })
		if string(svc.executed[0].Payload) != "hello" {
			t.Fatalf("replica %d executed wrong payload: %q", i, svc.executed[0].Payload)
		}
	}
}

// TestEngineOnlyLeaderAccepts verifies that a non-leader replica's Propose
// fails fast with ErrInactive rather than silently queuing forever.
func TestEngineOnlyLeaderAccepts(t *testing.T) {
	engines, _ := newTestGroup(t, 3)
	startAll(t, engines)
	defer stopAll(engines)

	waitFor(t, time.Second, func() bool { return engines[0].IsLeader() })

	future, err := engines[1].Propose(Request{ID: RequestID{ClientID: 2, SequenceNo: 1}, Payload: []byte("x")})
	if err != nil {
		t.Fatalf("Propose on a follower should still be admitted (resolved async): %v", err)
	}
	_, err = future.Result()
	if err != ErrInactive {
		t.Fatalf("expected ErrInactive from a non-leader replica, got %v", err)
	}
}

// TestEngineBusyRejectsOverload checks the LocalOverload admission gate
// (spec §7): once the dispatcher backlog exceeds BusyThreshold, Propose
// must fail immediately with ErrBusy rather than enqueue.
func TestEngineBusyRejectsOverload(t *testing.T) {
	cfg := NewConfig(0, 1, WithBusyThreshold(0))
	svc := newFakeService()
	net := newInmemNetwork(0)
	e, err := NewEngine(cfg, svc, net, newMemStorage(), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	// drive the queue depth above the (zero) threshold with a blocking task
	block := make(chan struct{})
	e.dispatcher.Enqueue(func() error { <-block; return nil })
	e.dispatcher.Enqueue(func() error { return nil })
	defer close(block)

	waitFor(t, time.Second, func() bool { return e.QueueDepth() > cfg.BusyThreshold })
	if _, err := e.Propose(Request{ID: RequestID{ClientID: 1, SequenceNo: 1}, Payload: []byte("y")}); err != ErrBusy {
		t.Fatalf("expected ErrBusy once the queue exceeds BusyThreshold, got %v", err)
	}
}

// TestEngineMultipleProposalsExecuteInOrder checks that several client
// proposals accepted while the leader is PREPARED are executed against the
// Service in ascending instance order, never reordered.
func TestEngineMultipleProposalsExecuteInOrder(t *testing.T) {
	engines, services := newTestGroup(t, 3)
	startAll(t, engines)
	defer stopAll(engines)

	waitFor(t, time.Second, func() bool { return engines[0].IsLeader() })

	var futures []*FutureTask[[]byte]
	for i := 0; i < 5; i++ {
		f, err := engines[0].Propose(Request{ID: RequestID{ClientID: 1, SequenceNo: uint64(i + 1)}, Payload: []byte{byte(i)}})
		if err != nil {
			t.Fatalf("Propose %d: %v", i, err)
		}
		futures = append(futures, f)
	}
	for i, f := range futures {
		reply, err := f.Result()
		if err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if len(reply) != 1 || reply[0] != byte(i) {
			t.Fatalf("future %d: expected payload %d, got %v", i, i, reply)
		}
	}

	leaderSvc := services[0]
	waitFor(t, time.Second, func() bool { return leaderSvc.executedCount() == 5 })
	for i, req := range leaderSvc.executed {
		if len(req.Payload) != 1 || req.Payload[0] != byte(i) {
			t.Fatalf("execution order violated at position %d: %v", i, req.Payload)
		}
	}
}
