package paxos

import (
	"sync"
	"time"
)

// LeaderOracle tracks the current view's leader and suspects it dead when
// no Alive heartbeat (or any other in-protocol message from it) has been
// seen within Config.SuspectLeader (spec §4.4). It never mutates protocol
// state itself: a suspicion fires exactly one onNewLeaderElected callback
// through enqueue, same as Retransmitter.
type LeaderOracle struct {
	mu      sync.Mutex
	cfg     *Config
	net     Network
	enqueue func(func() error)
	onElect func(leaderID int, view int32) error

	view       int32
	lastSeen   time.Time
	aliveTimer *time.Timer
	suspectGen uint64
	stopped    bool

	// aliveTicker is non-nil only while this replica believes itself the
	// leader of view; it drives the outbound heartbeat.
	aliveTicker *time.Ticker
	aliveDone   chan struct{}
}

// newLeaderOracle constructs an oracle pinned to view 0 (the well-known
// first leader, replica 0 by Config.Leader's v mod N rule).
func newLeaderOracle(cfg *Config, net Network, enqueue func(func() error), onElect func(int, int32) error) *LeaderOracle {
	lo := &LeaderOracle{
		cfg:     cfg,
		net:     net,
		enqueue: enqueue,
		onElect: onElect,
	}
	return lo
}

// Start arms suspicion tracking for view 0 and, if this replica leads it,
// begins sending Alive heartbeats. Engine.Start calls it once, after
// registering message listeners and before the Dispatcher goroutine runs.
func (lo *LeaderOracle) Start() {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	lo.lastSeen = time.Now()
	lo.armSuspectLocked()
	if lo.cfg.IsLocalLeader(lo.view) {
		lo.startHeartbeatLocked()
	}
}

// NoteActivity records that a message was received from sender while in
// view v. Any message at all counts as liveness evidence for the leader of
// that view (spec §4.4); a message for a newer view also advances the
// oracle's tracked view without itself constituting an election (the
// Proposer/Acceptor views remain authoritative, this just keeps the
// suspicion clock aligned with them).
func (lo *LeaderOracle) NoteActivity(sender int, v int32) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	if v < lo.view {
		return
	}
	if v > lo.view {
		lo.adoptViewLocked(v)
	}
	if sender == lo.cfg.Leader(lo.view) {
		lo.lastSeen = time.Now()
	}
}

// AdoptView forces the oracle onto view v, e.g. after the local Proposer
// independently bumps its own view (CatchUp, explicit stepdown). It never
// fires onElect itself; the caller already knows.
func (lo *LeaderOracle) AdoptView(v int32) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	if v <= lo.view {
		return
	}
	lo.adoptViewLocked(v)
}

func (lo *LeaderOracle) adoptViewLocked(v int32) {
	lo.view = v
	lo.lastSeen = time.Now()
	lo.stopHeartbeatLocked()
	if lo.cfg.IsLocalLeader(v) {
		lo.startHeartbeatLocked()
	}
}

func (lo *LeaderOracle) armSuspectLocked() {
	if lo.stopped {
		return
	}
	lo.suspectGen++
	gen := lo.suspectGen
	if lo.aliveTimer != nil {
		lo.aliveTimer.Stop()
	}
	lo.aliveTimer = time.AfterFunc(lo.cfg.SuspectLeader, func() {
		lo.enqueue(func() error { return lo.checkSuspect(gen) })
	})
}

// checkSuspect runs on the Dispatcher goroutine. It discards stale fires
// (a newer generation means activity already rearmed the timer) and, on a
// genuine timeout, advances to the next view this replica owns and fires
// onElect once. A non-nil return from onElect is a StorageFailure or
// ProtocolViolation surfacing from prepareNextView and is fatal.
func (lo *LeaderOracle) checkSuspect(gen uint64) error {
	lo.mu.Lock()
	if lo.stopped || gen != lo.suspectGen {
		lo.mu.Unlock()
		return nil
	}
	elapsed := time.Since(lo.lastSeen)
	if elapsed < lo.cfg.SuspectLeader {
		lo.armSuspectLocked()
		lo.mu.Unlock()
		return nil
	}
	next := lo.cfg.nextViewForSelf(lo.view)
	if lo.cfg.IsLocalLeader(lo.view) {
		// a leader never suspects itself; a stray timer fire while we
		// still own the view is ignored
		lo.armSuspectLocked()
		lo.mu.Unlock()
		return nil
	}
	lo.adoptViewLocked(next)
	lo.armSuspectLocked()
	onElect := lo.onElect
	v := lo.view
	lo.mu.Unlock()
	if onElect != nil {
		return onElect(lo.cfg.LocalID, v)
	}
	return nil
}

func (lo *LeaderOracle) startHeartbeatLocked() {
	if lo.aliveTicker != nil {
		return
	}
	lo.aliveTicker = time.NewTicker(lo.cfg.SendTimeout)
	lo.aliveDone = make(chan struct{})
	view := lo.view
	ticker := lo.aliveTicker
	done := lo.aliveDone
	go func() {
		for {
			select {
			case <-ticker.C:
				lo.enqueue(func() error { return lo.sendAlive(view) })
			case <-done:
				return
			}
		}
	}()
}

func (lo *LeaderOracle) stopHeartbeatLocked() {
	if lo.aliveTicker == nil {
		return
	}
	lo.aliveTicker.Stop()
	close(lo.aliveDone)
	lo.aliveTicker = nil
	lo.aliveDone = nil
}

// sendAlive emits one heartbeat. SendToAll failures are TransientNetwork,
// never fatal, so this always returns nil; the error return exists only to
// satisfy the Dispatcher's uniform task signature.
func (lo *LeaderOracle) sendAlive(view int32) error {
	lo.mu.Lock()
	stillLeader := !lo.stopped && lo.view == view && lo.cfg.IsLocalLeader(view)
	lo.mu.Unlock()
	if !stillLeader {
		return nil
	}
	msg := &Message{Kind: KindAlive, View: view, SentTime: time.Now().UnixMilli()}
	_ = lo.net.SendToAll(msg)
	return nil
}

// Stop cancels every timer and heartbeat goroutine, used on Engine shutdown.
func (lo *LeaderOracle) Stop() {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	lo.stopped = true
	if lo.aliveTimer != nil {
		lo.aliveTimer.Stop()
	}
	lo.stopHeartbeatLocked()
}

// View reports the oracle's current notion of the view.
func (lo *LeaderOracle) View() int32 {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	return lo.view
}
