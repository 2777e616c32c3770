package paxos

import (
	"sync"
	"testing"
	"time"
)

// countingNetwork counts SendTo calls per destination without any actual
// transport, enough to observe the Retransmitter's resend behaviour.
type countingNetwork struct {
	mu    sync.Mutex
	sends map[int]int
}

func newCountingNetwork() *countingNetwork {
	return &countingNetwork{sends: make(map[int]int)}
}

func (n *countingNetwork) SendTo(dest int, msg *Message) error {
	n.mu.Lock()
	n.sends[dest]++
	n.mu.Unlock()
	return nil
}

func (n *countingNetwork) SendToAll(msg *Message) error { return nil }
func (n *countingNetwork) AddMessageListener(Kind, MessageHandler) {}

func (n *countingNetwork) count(dest int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends[dest]
}

// runDispatcherInline drains enqueued tasks synchronously on the calling
// goroutine for test determinism, rather than spinning up a real
// Dispatcher goroutine racing against the test's own assertions.
func runDispatcherInline() (enqueue func(func() error), drain func()) {
	var mu sync.Mutex
	var tasks []func() error
	enqueue = func(f func() error) {
		mu.Lock()
		tasks = append(tasks, f)
		mu.Unlock()
	}
	drain = func() {
		for {
			mu.Lock()
			if len(tasks) == 0 {
				mu.Unlock()
				return
			}
			t := tasks[0]
			tasks = tasks[1:]
			mu.Unlock()
			_ = t()
		}
	}
	return enqueue, drain
}

func TestRetransmitterSendsImmediatelyOnStart(t *testing.T) {
	net := newCountingNetwork()
	enqueue, _ := runDispatcherInline()
	r := newRetransmitter(net, 50*time.Millisecond, enqueue)
	r.StartTransmitting(&Message{Kind: KindAlive}, []int{1, 2})
	if net.count(1) != 1 || net.count(2) != 1 {
		t.Fatalf("expected one immediate send per destination, got %d,%d", net.count(1), net.count(2))
	}
}

func TestRetransmitterResendsUntilStopped(t *testing.T) {
	net := newCountingNetwork()
	enqueue, drain := runDispatcherInline()
	r := newRetransmitter(net, 20*time.Millisecond, enqueue)
	h := r.StartTransmitting(&Message{Kind: KindAlive}, []int{1})

	time.Sleep(70 * time.Millisecond)
	drain()
	if net.count(1) < 2 {
		t.Fatalf("expected at least 2 sends (initial + resend) within 70ms at a 20ms period, got %d", net.count(1))
	}

	h.Stop()
	after := net.count(1)
	time.Sleep(70 * time.Millisecond)
	drain()
	if net.count(1) != after {
		t.Fatalf("expected no further sends after Stop, went from %d to %d", after, net.count(1))
	}
}

func TestRetransmitterPerDestinationStop(t *testing.T) {
	net := newCountingNetwork()
	enqueue, drain := runDispatcherInline()
	r := newRetransmitter(net, 20*time.Millisecond, enqueue)
	t.Cleanup(r.StopAll)
	h := r.StartTransmitting(&Message{Kind: KindAlive}, []int{1, 2})
	h.Stop(1)

	time.Sleep(70 * time.Millisecond)
	drain()
	if net.count(1) != 1 {
		t.Fatalf("destination 1 should only have its one immediate send, got %d", net.count(1))
	}
	if net.count(2) < 2 {
		t.Fatalf("destination 2 should still be resent to, got %d", net.count(2))
	}
}

func TestRetransmitterForceRetransmit(t *testing.T) {
	net := newCountingNetwork()
	enqueue, _ := runDispatcherInline()
	r := newRetransmitter(net, time.Hour, enqueue)
	t.Cleanup(r.StopAll)
	h := r.StartTransmitting(&Message{Kind: KindAlive}, []int{1})
	h.ForceRetransmit()
	if net.count(1) != 2 {
		t.Fatalf("expected immediate send + 1 forced send, got %d", net.count(1))
	}
}

func TestRetransmitterStopAll(t *testing.T) {
	net := newCountingNetwork()
	enqueue, drain := runDispatcherInline()
	r := newRetransmitter(net, 20*time.Millisecond, enqueue)
	r.StartTransmitting(&Message{Kind: KindAlive}, []int{1})
	r.StartTransmitting(&Message{Kind: KindAlive}, []int{2})
	r.StopAll()

	before1, before2 := net.count(1), net.count(2)
	time.Sleep(70 * time.Millisecond)
	drain()
	if net.count(1) != before1 || net.count(2) != before2 {
		t.Fatalf("StopAll must cancel every slot")
	}
}
