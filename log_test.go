package paxos

import "testing"

func TestLogAppendAssignsDenseIds(t *testing.T) {
	l := newLog(0)
	a := l.append(0, []byte("a"))
	b := l.append(0, []byte("b"))
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("expected dense ids 0,1, got %d,%d", a.ID, b.ID)
	}
	if l.getNextId() != 2 {
		t.Fatalf("expected nextId=2, got %d", l.getNextId())
	}
}

func TestLogGetOrCreateFillsGaps(t *testing.T) {
	l := newLog(0)
	inst := l.getOrCreate(3)
	if inst == nil || inst.State != StateUnknown {
		t.Fatalf("expected UNKNOWN gap entry at 3")
	}
	for id := int32(0); id < 3; id++ {
		if l.getState(id) != StateUnknown {
			t.Fatalf("gap entry %d should be UNKNOWN", id)
		}
	}
	if l.getNextId() != 4 {
		t.Fatalf("expected nextId=4 after gap fill to 3, got %d", l.getNextId())
	}
}

func TestLogGetOrCreateBelowTruncationReturnsNil(t *testing.T) {
	l := newLog(0)
	l.append(0, []byte("a"))
	l.truncateBelow(1)
	if l.getOrCreate(0) != nil {
		t.Fatalf("expected nil for an id truncated away")
	}
}

func TestLogFirstUncommitted(t *testing.T) {
	l := newLog(0)
	a := l.append(0, []byte("a"))
	b := l.append(0, []byte("b"))
	l.append(0, []byte("c"))
	if l.firstUncommitted() != 0 {
		t.Fatalf("nothing decided yet, expected firstUncommitted=0, got %d", l.firstUncommitted())
	}
	a.markDecided(0, a.Value)
	if l.firstUncommitted() != 1 {
		t.Fatalf("expected firstUncommitted=1 after deciding id 0, got %d", l.firstUncommitted())
	}
	b.markDecided(0, b.Value)
	if l.firstUncommitted() != 2 {
		t.Fatalf("expected firstUncommitted=2 after deciding id 1, got %d", l.firstUncommitted())
	}
}

func TestLogTruncateBelowDiscardsOldEntries(t *testing.T) {
	l := newLog(0)
	for i := 0; i < 5; i++ {
		l.append(0, []byte("x"))
	}
	l.truncateBelow(3)
	if l.first != 3 {
		t.Fatalf("expected first=3, got %d", l.first)
	}
	if l.getState(2) != StateDecided {
		t.Fatalf("ids below truncation watermark must report DECIDED (invariant 6)")
	}
	if l.getInstance(2) != nil {
		t.Fatalf("truncated entry must not be retrievable")
	}
	if l.getInstance(3) == nil {
		t.Fatalf("entry at the watermark itself must survive truncation")
	}
}

func TestLogCheckPrefixInvariant(t *testing.T) {
	l := newLog(5)
	if err := l.checkPrefixInvariant(); err != nil {
		t.Fatalf("fresh log at first=next=5 should satisfy invariant 5: %v", err)
	}
}
