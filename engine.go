package paxos

import (
	"go.uber.org/zap"
)

// Engine owns every piece of protocol state described in spec §4 and wires
// the components together (design note: "Cyclic component graph" -> a
// single owning Engine holding each component by explicit reference,
// routing notifications through engine methods instead of back-pointers).
// All state-mutating work happens on the Dispatcher goroutine; Engine's
// exported methods only enqueue tasks or read immutable fields.
type Engine struct {
	cfg     *Config
	logger  *zap.SugaredLogger
	service Service

	log       *Log
	storage   StableStorage
	net       Network
	retx      *Retransmitter
	oracle    *LeaderOracle
	acceptor  *Acceptor
	learner   *Learner
	proposer  *Proposer
	snapshots *SnapshotManager
	catchup   *CatchUpManager

	dispatcher *Dispatcher

	// execution cursor: buffers Decided instances until the prefix below
	// nextExec is contiguous (spec §5, "a Decide for instance i is
	// emitted to the service in strictly ascending i order").
	nextExec int32
	pending  map[int32]*Instance
	waiters  map[RequestID]*FutureTask[[]byte]
}

// NewEngine constructs a replica's Engine. storage must already be open;
// Engine takes ownership of closing it on Stop. net must not yet have
// been started serving traffic — Engine registers its own listeners
// before Start returns.
func NewEngine(cfg *Config, service Service, net Network, storage StableStorage, logger *zap.SugaredLogger) (*Engine, error) {
	if logger == nil {
		logger = newLogger(false)
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		service: service,
		net:     net,
		storage: storage,
		log:     newLog(0),
		pending: make(map[int32]*Instance),
		waiters: make(map[RequestID]*FutureTask[[]byte]),
	}

	e.dispatcher = newDispatcher(dispatcherQueueCapacity(cfg), logger)
	e.retx = newRetransmitter(net, cfg.RetransmitTimeout, e.dispatcher.Enqueue)
	e.oracle = newLeaderOracle(cfg, net, e.dispatcher.Enqueue, e.onLeaderElected)

	acceptor, err := newAcceptor(cfg, e.log, storage, net, e.oracle, logger)
	if err != nil {
		return nil, err
	}
	e.acceptor = acceptor
	e.learner = newLearner(cfg, e.log, storage, logger)
	e.proposer = newProposer(cfg, e.log, e.acceptor, e.learner, e.retx, logger)
	e.learner.wireProposer(e.proposer.stopPropose, e.proposer.ballotFinished)
	e.learner.SetOnDecide(e.handleDecide)

	e.snapshots = newSnapshotManager(cfg, e.log, storage, service, logger)
	e.snapshots.SetOnInstalled(e.onSnapshotInstalled)
	e.snapshots.SetAdoptView(e.acceptor.AdoptView)
	e.catchup = newCatchUpManager(cfg, e.log, storage, net, e.learner, e.snapshots, logger, e.dispatcher.Enqueue)

	return e, nil
}

// maxDispatcherQueueCapacity bounds the task channel so a pathologically
// large BusyThreshold can't make Engine construction allocate an unbounded
// buffer.
const maxDispatcherQueueCapacity = 1 << 20

// dispatcherQueueCapacity sizes the task channel well above BusyThreshold
// so in-protocol messages (which must never be dropped for overload, spec
// §7) never block their producer goroutine waiting for dispatcher drain;
// BusyThreshold itself only gates the client-facing admission path.
func dispatcherQueueCapacity(cfg *Config) int {
	return minInt(maxInt(cfg.BusyThreshold*8, 4096), maxDispatcherQueueCapacity)
}

// onLeaderElected is the LeaderOracle's callback (spec §4.4): it fires
// exactly when this replica has just suspected the incumbent and elected
// itself leader of a new view. Every other effect of a view change
// (stepping down a stale leader, adopting a peer's higher view) flows
// through enforceLeadership after each protocol message instead, since
// the oracle only ever calls this when leaderID == cfg.LocalID.
func (e *Engine) onLeaderElected(leaderID int, view int32) error {
	if leaderID != e.cfg.LocalID {
		return nil
	}
	return e.proposer.prepareNextView()
}

// enforceLeadership steps the Proposer down the instant this replica's
// durable view no longer belongs to it — e.g. a Prepare/Propose from a
// higher view just arrived from the new leader. Run after every inbound
// protocol message (spec §4.7 "on leader loss: stopProposer").
func (e *Engine) enforceLeadership() {
	if e.proposer.State() == ProposerInactive {
		return
	}
	if !e.cfg.IsLocalLeader(e.acceptor.View()) {
		e.proposer.stopProposer()
	}
}

// registerHandlers wires every wire message kind to a Dispatcher task that
// first records liveness evidence for the FailureDetector (spec §4.4: any
// in-protocol message counts, not just Alive), then routes to the owning
// component, then re-checks leadership.
func (e *Engine) registerHandlers() {
	for _, kind := range []Kind{
		KindPrepare, KindPrepareOK, KindPropose, KindAccept, KindAlive,
		KindCatchUpQuery, KindCatchUpResp, KindCatchUpSnapshot,
	} {
		k := kind
		e.net.AddMessageListener(k, func(sender int, msg *Message) {
			e.dispatcher.Enqueue(func() error { return e.dispatchMessage(k, sender, msg) })
		})
	}
}

func (e *Engine) dispatchMessage(kind Kind, sender int, msg *Message) error {
	e.oracle.NoteActivity(sender, msg.View)

	var err error
	switch kind {
	case KindPrepare:
		err = e.acceptor.HandlePrepare(sender, msg)
	case KindPrepareOK:
		err = e.proposer.HandlePrepareOK(sender, msg)
	case KindPropose:
		err = e.acceptor.HandlePropose(sender, msg)
	case KindAccept:
		if err = e.learner.HandleAccept(sender, msg); err == nil {
			err = e.proposer.HandleAccept(sender, msg)
		}
	case KindAlive:
		// NoteActivity above is the entire effect of a heartbeat.
	case KindCatchUpQuery:
		err = e.catchup.HandleCatchUpQuery(sender, msg)
	case KindCatchUpResp:
		err = e.catchup.HandleCatchUpResp(sender, msg)
	case KindCatchUpSnapshot:
		err = e.catchup.HandleCatchUpSnapshot(sender, msg)
	}
	if err != nil {
		return err
	}
	e.enforceLeadership()
	return nil
}

// handleDecide is the Learner's onDecide callback (spec §4.6): it buffers
// inst and drains every contiguous prefix starting at nextExec, decoding
// each entry's batch and executing its requests in submission order
// against the Service (spec §5: "a Decide for instance i is emitted to
// the service in strictly ascending i order; the Learner buffers
// out-of-order decisions until the prefix is contiguous").
func (e *Engine) handleDecide(inst *Instance) error {
	e.pending[inst.ID] = inst
	for {
		next, ok := e.pending[e.nextExec]
		if !ok {
			// every DECIDED id below firstUncommitted has now been executed,
			// so a snapshot taken here never truncates an unexecuted entry
			return e.snapshots.MaybeSnapshot()
		}
		delete(e.pending, e.nextExec)

		reqs, err := decodeBatch(next.Value)
		if err != nil {
			return protocolViolation("decode batch at instance %d: %v", next.ID, err)
		}
		for _, req := range reqs {
			reply, err := e.service.Execute(next.ID, req)
			if err != nil {
				return protocolViolation("service execute at instance %d: %v", next.ID, err)
			}
			if waiter, ok := e.waiters[req.ID]; ok {
				delete(e.waiters, req.ID)
				waiter.setResult(reply, nil)
			}
		}
		e.service.InstanceExecuted(next.ID)
		e.nextExec++
	}
}

// onSnapshotInstalled is SnapshotManager's callback, fired whenever a
// snapshot lands (taken locally or received via CatchUp). A received
// snapshot can skip the execution cursor forward past instances this
// replica never executed itself (spec §4.8 scenario 6): drop any buffered
// Decided entries it now supersedes and fast-forward nextExec to match.
func (e *Engine) onSnapshotInstalled(watermark int32) {
	if watermark <= e.nextExec {
		return
	}
	for id := range e.pending {
		if id < watermark {
			delete(e.pending, id)
		}
	}
	e.nextExec = watermark
}

// Start registers message handlers, arms the FailureDetector and
// CatchUpManager, and begins draining the Dispatcher's task queue on a new
// goroutine. A replica that currently owns its durable view (fresh
// bootstrap at view 0, or a restart that finds itself still the rightful
// leader) activates its Proposer immediately instead of waiting a full
// SuspectLeader window for a failure to be noticed — it still has to win
// a fresh Prepare quorum before proposing anything, since no in-memory
// PREPARED state survives a restart.
func (e *Engine) Start() error {
	e.registerHandlers()
	e.oracle.Start()
	e.catchup.Start()
	go e.dispatcher.Run()

	if e.cfg.IsLocalLeader(e.acceptor.View()) {
		e.dispatcher.Enqueue(e.proposer.prepareNextView)
	}
	return nil
}

// Stop tears down every timer and goroutine and closes stable storage.
func (e *Engine) Stop() error {
	e.oracle.Stop()
	e.catchup.Stop()
	e.retx.StopAll()
	e.dispatcher.Stop()
	return e.storage.Close()
}

// Propose submits a client request for replication (spec §4.7
// propose(request)). It returns a FutureTask fulfilled with the request's
// reply once its containing instance is decided and executed, or an error
// immediately if the dispatcher is overloaded (spec §7 LocalOverload) or
// the log has grown past the snapshot force ratio awaiting a checkpoint.
// In-protocol messages never go through this admission check — only
// client-originated proposals can be refused this way.
func (e *Engine) Propose(req Request) (*FutureTask[[]byte], error) {
	if e.dispatcher.QueueDepth() > e.cfg.BusyThreshold {
		return nil, ErrBusy
	}
	if e.snapshots.ShouldForceBackpressure() {
		return nil, ErrBusy
	}

	future := newFutureTask[[]byte]()
	e.dispatcher.Enqueue(func() error {
		if _, exists := e.waiters[req.ID]; exists {
			// a duplicate Propose for a request already pending locally
			// resolves to the same future once it lands; nothing new to
			// enqueue downstream.
			return nil
		}
		e.waiters[req.ID] = future
		if err := e.proposer.Propose(req); err != nil {
			delete(e.waiters, req.ID)
			future.setResult(nil, err)
		}
		return nil
	})
	return future, nil
}

// View reports the replica's current durable view.
func (e *Engine) View() int32 {
	return e.acceptor.View()
}

// IsLeader reports whether this replica currently believes it owns the
// Proposer role for its own view (state PREPARED).
func (e *Engine) IsLeader() bool {
	return e.proposer.State() == ProposerPrepared
}

// QueueDepth exposes the Dispatcher's current backlog, the quantity
// Config.BusyThreshold gates admission against.
func (e *Engine) QueueDepth() int {
	return e.dispatcher.QueueDepth()
}
