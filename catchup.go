package paxos

import (
	"time"

	"go.uber.org/zap"
)

// CatchUpManager implements spec §4.8's catch-up protocol: a replica
// holding not-yet-DECIDED ids (UNKNOWN gaps, or KNOWN entries whose Accept
// quorum was counted only by the proposer) queries its peers for the
// missing DECIDED records (or a whole snapshot, if the gap predates any
// peer's log). The query retransmission uses a self-adjusting timeout
// that backs off on silence and resets on progress, and also fires
// periodically regardless of suspected gaps so a replica that doesn't yet
// know it's behind still finds out.
type CatchUpManager struct {
	cfg       *Config
	log       *Log
	storage   StableStorage
	net       Network
	learner   *Learner
	snapshots *SnapshotManager
	logger    *zap.SugaredLogger
	enqueue   func(func() error)

	timer        *time.Timer
	backoff      time.Duration
	gen          uint64
	lastFireNext int32
	stopped      bool
}

func newCatchUpManager(cfg *Config, log *Log, storage StableStorage, net Network, learner *Learner, snapshots *SnapshotManager, logger *zap.SugaredLogger, enqueue func(func() error)) *CatchUpManager {
	return &CatchUpManager{
		cfg:       cfg,
		log:       log,
		storage:   storage,
		net:       net,
		learner:   learner,
		snapshots: snapshots,
		logger:    logger,
		enqueue:   enqueue,
		backoff:   cfg.CatchUpMinResend,
	}
}

// Start arms the first query cycle. Engine.Start calls it once, before the
// Dispatcher goroutine begins running.
func (c *CatchUpManager) Start() {
	c.lastFireNext = c.log.getNextId()
	c.arm()
}

func (c *CatchUpManager) arm() {
	if c.stopped {
		return
	}
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.backoff, func() {
		c.enqueue(func() error { return c.fire(gen) })
	})
}

// Stop cancels the query timer, used on Engine shutdown.
func (c *CatchUpManager) Stop() {
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
}

// fire always returns nil: a catch-up query send failure is TransientNetwork,
// never fatal. The error return exists only to satisfy the Dispatcher's
// uniform task signature.
func (c *CatchUpManager) fire(gen uint64) error {
	if c.stopped || gen != c.gen {
		return nil
	}
	next := c.log.getNextId()
	if next > c.lastFireNext {
		c.backoff = c.cfg.CatchUpMinResend
	} else {
		c.backoff *= 2
		if c.backoff > c.cfg.CatchUpMaxResend {
			c.backoff = c.cfg.CatchUpMaxResend
		}
	}
	c.lastFireNext = next

	ranges := c.buildNeededRanges()
	msg := &Message{Kind: KindCatchUpQuery, Needed: ranges}
	for _, dest := range otherReplicas(c.cfg) {
		if err := c.net.SendTo(dest, msg); err != nil {
			c.logger.Debugw("catchup query send failed", "dest", dest, "error", err)
		}
	}
	c.arm()
	return nil
}

// buildNeededRanges reports contiguous runs of not-yet-DECIDED ids held in
// the log, plus a trailing probe range just past nextId so a replica that
// has fallen silently behind (no local undecided entries at all, because it
// never heard of the missing ids) still discovers it.
func (c *CatchUpManager) buildNeededRanges() []idRange {
	var ranges []idRange
	var runStart int32 = -1
	for id := c.log.first; id < c.log.next; id++ {
		if c.log.getState(id) != StateDecided {
			if runStart < 0 {
				runStart = id
			}
		} else if runStart >= 0 {
			ranges = append(ranges, idRange{Low: runStart, High: id})
			runStart = -1
		}
	}
	if runStart >= 0 {
		ranges = append(ranges, idRange{Low: runStart, High: c.log.next})
	}
	next := c.log.getNextId()
	ranges = append(ranges, idRange{Low: next, High: next + 1})
	return ranges
}

// HandleCatchUpQuery answers a peer's request for missing ids: DECIDED
// records it already holds for the requested ranges, or its last snapshot
// if any requested id predates the log's retained prefix.
func (c *CatchUpManager) HandleCatchUpQuery(sender int, msg *Message) error {
	needsSnapshot := false
	var decided []InstanceRecord
	for _, r := range msg.Needed {
		if r.Low < c.log.first {
			needsSnapshot = true
			continue
		}
		high := r.High
		if high > c.log.next {
			high = c.log.next
		}
		for id := r.Low; id < high; id++ {
			inst := c.log.getInstance(id)
			if inst != nil && inst.State == StateDecided {
				decided = append(decided, recordFromInstance(inst))
			}
		}
	}

	if needsSnapshot {
		id, view, body, ok := c.storage.LastSnapshot()
		if ok {
			resp := &Message{Kind: KindCatchUpSnapshot, SnapshotLastID: id, SnapshotLastView: view, SnapshotBody: body}
			if err := c.net.SendTo(sender, resp); err != nil {
				c.logger.Debugw("catchup snapshot send failed", "dest", sender, "error", err)
			}
			return nil
		}
	}

	if len(decided) == 0 {
		return nil
	}
	resp := &Message{Kind: KindCatchUpResp, Decided: decided}
	if err := c.net.SendTo(sender, resp); err != nil {
		c.logger.Debugw("catchup resp send failed", "dest", sender, "error", err)
	}
	return nil
}

// HandleCatchUpResp applies DECIDED records a peer sent in answer to our
// query.
func (c *CatchUpManager) HandleCatchUpResp(sender int, msg *Message) error {
	for _, rec := range msg.Decided {
		if err := c.learner.AdoptDecidedRecord(rec); err != nil {
			return err
		}
	}
	if len(msg.Decided) > 0 {
		c.backoff = c.cfg.CatchUpMinResend
	}
	return nil
}

// HandleCatchUpSnapshot installs a snapshot a peer sent because our gap
// predated its retained log.
func (c *CatchUpManager) HandleCatchUpSnapshot(sender int, msg *Message) error {
	if err := c.snapshots.InstallReceived(msg.SnapshotLastID, msg.SnapshotLastView, msg.SnapshotBody); err != nil {
		return err
	}
	c.backoff = c.cfg.CatchUpMinResend
	return nil
}
