package paxos

import (
	"sync"
	"time"
)

// Retransmitter maintains, per (message, destination-set) slot, a resend
// timer running at Config.RetransmitTimeout (spec §4.2). Its own timer
// goroutines never touch Paxos state directly — they only enqueue a
// dispatcher task through enqueue, preserving the single-owner contract
// of spec §5.
type Retransmitter struct {
	mu      sync.Mutex
	period  time.Duration
	net     Network
	enqueue func(func() error)
	slots   map[uint64]*retransmitSlot
	nextID  uint64
}

func newRetransmitter(net Network, period time.Duration, enqueue func(func() error)) *Retransmitter {
	return &Retransmitter{
		net:     net,
		period:  period,
		enqueue: enqueue,
		slots:   make(map[uint64]*retransmitSlot),
	}
}

type retransmitSlot struct {
	mu      sync.Mutex
	id      uint64
	msg     *Message
	dests   map[int]bool
	timer   *time.Timer
	stopped bool
	r       *Retransmitter
}

// Handle is returned by start_transmitting; its methods are safe to call
// from the Dispatcher goroutine (the only place retransmission control is
// ever exercised).
type Handle struct {
	slot *retransmitSlot
}

// StartTransmitting sends msg immediately to every destination, then
// re-offers it to the still-unacked subset every period until stopped.
func (r *Retransmitter) StartTransmitting(msg *Message, dests []int) *Handle {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	destSet := make(map[int]bool, len(dests))
	for _, d := range dests {
		destSet[d] = true
	}
	slot := &retransmitSlot{id: id, msg: msg, dests: destSet, r: r}
	r.slots[id] = slot
	r.mu.Unlock()

	for d := range destSet {
		_ = r.net.SendTo(d, msg)
	}
	slot.arm()
	return &Handle{slot: slot}
}

func (s *retransmitSlot) arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.timer = time.AfterFunc(s.r.period, func() {
		s.r.enqueue(s.fire)
	})
}

// fire runs on the Dispatcher goroutine: a guard check discards fires that
// raced a cancellation (spec §5, "timers may still fire for a cancelled
// task and must be ignored"). Resend sends are TransientNetwork failures,
// never fatal, so fire always returns nil; the error return exists only to
// satisfy the Dispatcher's uniform task signature.
func (s *retransmitSlot) fire() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	dests := make([]int, 0, len(s.dests))
	for d := range s.dests {
		dests = append(dests, d)
	}
	msg := s.msg
	s.mu.Unlock()

	for _, d := range dests {
		_ = s.r.net.SendTo(d, msg)
	}

	s.mu.Lock()
	if !s.stopped {
		s.timer = time.AfterFunc(s.r.period, func() {
			s.r.enqueue(s.fire)
		})
	}
	s.mu.Unlock()
	return nil
}

// ForceRetransmit sends an immediate extra copy to the remaining
// destinations without waiting for the next period.
func (h *Handle) ForceRetransmit() {
	s := h.slot
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	dests := make([]int, 0, len(s.dests))
	for d := range s.dests {
		dests = append(dests, d)
	}
	msg := s.msg
	s.mu.Unlock()
	for _, d := range dests {
		_ = s.r.net.SendTo(d, msg)
	}
}

// Stop removes dest from the destination set, or cancels the slot entirely
// if dest is omitted.
func (h *Handle) Stop(dest ...int) {
	s := h.slot
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(dest) == 0 {
		s.cancelLocked()
		return
	}
	delete(s.dests, dest[0])
	if len(s.dests) == 0 {
		s.cancelLocked()
	}
}

func (s *retransmitSlot) cancelLocked() {
	if s.stopped {
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.r.mu.Lock()
	delete(s.r.slots, s.id)
	s.r.mu.Unlock()
}

// StopAll cancels every outstanding slot, used on Engine shutdown. (On
// leadership loss, stopProposer stops its own handles one by one.)
func (r *Retransmitter) StopAll() {
	r.mu.Lock()
	slots := make([]*retransmitSlot, 0, len(r.slots))
	for _, s := range r.slots {
		slots = append(slots, s)
	}
	r.mu.Unlock()
	for _, s := range slots {
		s.mu.Lock()
		s.cancelLocked()
		s.mu.Unlock()
	}
}
