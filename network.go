package paxos

import "sync"

// MessageHandler is invoked once per inbound message of the kind it was
// registered for; sender is the originating replica id.
type MessageHandler func(sender int, msg *Message)

// Network is the transport abstraction the core consumes (spec §6): it
// knows nothing about gRPC, UDP, or any other wire — it unicasts,
// broadcasts, and delivers decoded Messages by kind. The default
// implementation lives in package transport; tests use inmemNetwork.
type Network interface {
	SendTo(dest int, msg *Message) error
	SendToAll(msg *Message) error
	AddMessageListener(kind Kind, handler MessageHandler)
}

// inmemNetwork is an in-process Network double connecting a fixed set of
// replicas via direct handler calls. SendTo runs the destination's
// handlers synchronously on the sender's goroutine, so deliveries from one
// sender arrive in send order (ordering guarantee, spec §5).
type inmemNetwork struct {
	mu       sync.Mutex
	self     int
	peers    map[int]*inmemNetwork
	handlers map[Kind][]MessageHandler
	drop     func(src, dst int, msg *Message) bool // optional fault injector
}

// NewInmemNetwork returns an in-process Network double for a single
// replica; wire a fixed group together with LinkInmemNetworks instead of
// calling this directly, unless you intend to hand-link peers yourself.
func NewInmemNetwork(self int) Network {
	return newInmemNetwork(self)
}

// LinkInmemNetworks wires a fully-connected in-memory Network for each id
// in ids, useful for tests and local multi-replica demos that don't need
// a real transport.
func LinkInmemNetworks(ids []int) map[int]Network {
	nets := linkInmemNetworks(ids)
	out := make(map[int]Network, len(nets))
	for id, n := range nets {
		out[id] = n
	}
	return out
}

func newInmemNetwork(self int) *inmemNetwork {
	return &inmemNetwork{
		self:     self,
		peers:    make(map[int]*inmemNetwork),
		handlers: make(map[Kind][]MessageHandler),
	}
}

// linkInmemNetworks wires a fully-connected set of in-memory networks, one
// per replica id in ids.
func linkInmemNetworks(ids []int) map[int]*inmemNetwork {
	nets := make(map[int]*inmemNetwork, len(ids))
	for _, id := range ids {
		nets[id] = newInmemNetwork(id)
	}
	for _, id := range ids {
		for _, other := range ids {
			if id != other {
				nets[id].peers[other] = nets[other]
			}
		}
	}
	return nets
}

func (n *inmemNetwork) SendTo(dest int, msg *Message) error {
	peer, ok := n.peers[dest]
	if !ok {
		return nil // unknown peer: treated as TransientNetwork, dropped
	}
	if n.drop != nil && n.drop(n.self, dest, msg) {
		return nil
	}
	peer.deliver(n.self, msg)
	return nil
}

func (n *inmemNetwork) SendToAll(msg *Message) error {
	for dest := range n.peers {
		_ = n.SendTo(dest, msg)
	}
	return nil
}

func (n *inmemNetwork) AddMessageListener(kind Kind, handler MessageHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[kind] = append(n.handlers[kind], handler)
}

func (n *inmemNetwork) deliver(sender int, msg *Message) {
	n.mu.Lock()
	handlers := append([]MessageHandler(nil), n.handlers[msg.Kind]...)
	n.mu.Unlock()
	for _, h := range handlers {
		h(sender, msg)
	}
}
