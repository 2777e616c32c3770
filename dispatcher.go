package paxos

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Dispatcher is the single goroutine every piece of protocol state in this
// package is owned by (spec §4.1/§5): timers, RPC deliveries, and client
// Propose calls all funnel through its task queue instead of touching
// Acceptor/Learner/Proposer/Log state directly from their own goroutines.
// Mirrors the teacher's runMainLoop/serverChannels shape, collapsed to one
// channel since this protocol has no per-role loop switch.
type Dispatcher struct {
	noCopy noCopy

	tasks    chan func() error
	shutdown chan struct{}
	depth    int32
	logger   *zap.SugaredLogger
}

func newDispatcher(queueDepth int, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		tasks:    make(chan func() error, queueDepth),
		shutdown: make(chan struct{}),
		logger:   logger,
	}
}

// Enqueue posts task to the dispatcher goroutine. It blocks the caller
// only while the bounded task channel is full. Used by Retransmitter/LeaderOracle/CatchUpManager timers and by
// Network deliveries, all of which run on their own goroutines.
func (d *Dispatcher) Enqueue(task func() error) {
	atomic.AddInt32(&d.depth, 1)
	d.tasks <- task
}

// QueueDepth reports the number of tasks currently queued or in flight,
// the quantity Config.BusyThreshold gates client Proposes against (spec
// §7, LocalOverload).
func (d *Dispatcher) QueueDepth() int {
	return int(atomic.LoadInt32(&d.depth))
}

// Run drains the task queue until Stop is called. An uncaught error
// returned by any task is fatal to the replica (spec §4.1): the dispatcher
// logs it at Fatal level and exits the process, since continuing would
// mean running with a protocol invariant already broken or a durability
// write already lost.
func (d *Dispatcher) Run() {
	for {
		select {
		case task := <-d.tasks:
			err := task()
			atomic.AddInt32(&d.depth, -1)
			if err != nil {
				d.logger.Fatalw("dispatcher task failed fatally", "error", err)
			}
		case <-d.shutdown:
			return
		}
	}
}

// Stop signals Run to return. Tasks still queued at that point may never
// run; callers that want a synchronous drain should enqueue a sentinel
// task instead.
func (d *Dispatcher) Stop() {
	close(d.shutdown)
}
