package paxos

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// noCopy may be embedded into structs that must not be copied after first
// use; `go vet` flags copies via the Locker interface.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// FutureTask is a one-shot result cell handed back to a caller that enqueued
// work onto the Dispatcher; it is fulfilled exactly once from inside the
// dispatcher loop and read from any goroutine.
type FutureTask[T any] struct {
	mu     sync.Mutex
	done   chan struct{}
	result T
	err    error
	set    bool
}

func newFutureTask[T any]() *FutureTask[T] {
	return &FutureTask[T]{done: make(chan struct{})}
}

func (t *FutureTask[T]) setResult(result T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set {
		return
	}
	t.result, t.err, t.set = result, err, true
	close(t.done)
}

// Result blocks until the task is fulfilled and returns its value.
func (t *FutureTask[T]) Result() (T, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Done exposes the completion channel for use in select statements.
func (t *FutureTask[T]) Done() <-chan struct{} {
	return t.done
}

// newInstanceToken returns a short random hex token used to correlate log
// lines for a single proposal round (a ballot's Prepare through its
// PREPARED transition); it carries no protocol meaning.
func newInstanceToken() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
