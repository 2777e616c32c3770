package paxos

import "go.uber.org/zap"

// Acceptor implements spec §4.5. It is stateless across instances: all
// durable state lives in Log and StableStorage, so a crash mid-handler
// loses nothing but an in-flight reply (the sender's Retransmitter covers
// that). Like Learner and Proposer, every method here runs only on the
// Dispatcher goroutine.
type Acceptor struct {
	cfg     *Config
	log     *Log
	storage StableStorage
	net     Network
	oracle  *LeaderOracle
	logger  *zap.SugaredLogger

	view int32 // mirrors storage's durable view; loaded once at startup
}

func newAcceptor(cfg *Config, log *Log, storage StableStorage, net Network, oracle *LeaderOracle, logger *zap.SugaredLogger) (*Acceptor, error) {
	v, err := storage.View()
	if err != nil {
		return nil, storageFailure(err)
	}
	return &Acceptor{cfg: cfg, log: log, storage: storage, net: net, oracle: oracle, logger: logger, view: v}, nil
}

// AdoptView durably records a newer view and notifies the oracle. Both
// Prepare/Propose handling (v' > current) and the Proposer's own
// prepareNextView share this single path, since the durable view is one
// per-replica quantity regardless of which component observed it first.
func (a *Acceptor) AdoptView(v int32) error {
	if err := a.storage.SetView(v); err != nil {
		return storageFailure(err)
	}
	a.view = v
	a.oracle.AdoptView(v)
	return nil
}

// HandlePrepare processes an inbound Prepare(v, firstUncommitted) from
// sender.
func (a *Acceptor) HandlePrepare(sender int, msg *Message) error {
	if isStale(msg.View, a.view) {
		return nil
	}
	if msg.View > a.view {
		if err := a.AdoptView(msg.View); err != nil {
			return err
		}
	}

	var prepared []InstanceRecord
	for id := msg.FirstUncommitted; id < a.log.getNextId(); id++ {
		inst := a.log.getInstance(id)
		if inst == nil {
			continue
		}
		if inst.State == StateKnown || inst.State == StateDecided {
			prepared = append(prepared, recordFromInstance(inst))
		}
	}

	reply := &Message{Kind: KindPrepareOK, View: a.view, Prepared: prepared}
	if err := a.net.SendTo(sender, reply); err != nil {
		a.logger.Debugw("send PrepareOK failed", "dest", sender, "error", err)
	}
	return nil
}

// HandlePropose processes an inbound Propose(instance') from sender.
func (a *Acceptor) HandlePropose(sender int, msg *Message) error {
	v := msg.View
	if isStale(v, a.view) {
		return nil
	}
	if v > a.view {
		if err := a.AdoptView(v); err != nil {
			return err
		}
	}

	id := msg.Instance.ID
	inst := a.log.getOrCreate(id)
	if inst == nil {
		// id has already been truncated below the snapshot watermark;
		// the instance is settled and this Propose is moot.
		return nil
	}
	inst.setValue(v, msg.Instance.Value)

	reply := &Message{Kind: KindAccept, View: v, InstanceID: id}
	if err := a.net.SendTo(sender, reply); err != nil {
		a.logger.Debugw("send Accept failed", "dest", sender, "error", err)
	}
	return nil
}

// View reports the Acceptor's current durable view.
func (a *Acceptor) View() int32 {
	return a.view
}
