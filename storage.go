package paxos

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketMeta      = []byte("meta")
	bucketDecided   = []byte("decided")
	keyView         = []byte("view")
	keySnapshotHdr  = []byte("snapshot_header")
	keySnapshotBody = []byte("snapshot_body")
)

// StableStorage is the durable side of spec §3/§4.3: current view, last
// snapshot, and decided instance records. Implementations must not
// acknowledge setView/markDecided to their caller until the write is
// recoverable across a crash (spec §4.3 durability contract, §9 ordering
// open question: setView is always durable before any message carrying
// the new view is emitted).
type StableStorage interface {
	// View returns the highest view ever durably recorded.
	View() (int32, error)
	// SetView durably records v. Monotonicity is the caller's
	// responsibility (Acceptor/Proposer never call this with a
	// decreasing view).
	SetView(v int32) error

	// MarkDecided durably records that id was decided at view with
	// value. Safe to call more than once for the same id (idempotent).
	MarkDecided(id int32, view int32, value []byte) error
	// DecidedValue returns the durable record for id, or ok=false if
	// none exists (e.g. never decided, or truncated by a later
	// snapshot).
	DecidedValue(id int32) (view int32, value []byte, ok bool)
	// ForgetBelow discards decided records below watermark, called once
	// the log has been truncated to match (keeps the store from growing
	// without bound).
	ForgetBelow(watermark int32) error

	// InstallSnapshot atomically replaces the last snapshot pointer and
	// the bytes beneath it; the caller truncates the Log and decided
	// records separately once this returns.
	InstallSnapshot(lastIncludedID int32, lastIncludedView int32, body []byte) error
	// LastSnapshot returns the most recently installed snapshot, or
	// ok=false if none has ever been installed.
	LastSnapshot() (id int32, view int32, body []byte, ok bool)

	Close() error
}

// boltStorage is the default StableStorage backend, grounded in the
// bbolt dependency carried by chaitanyaphalak-go-mcast and JmPotato-pd in
// the retrieval pack: a single-file embedded store with transactional
// commits, which is exactly the durability granularity spec §4.3 demands.
type boltStorage struct {
	db *bolt.DB
}

// OpenBoltStorage opens (creating if absent) a bbolt-backed StableStorage
// at path and ensures its buckets exist. This is the default durable
// backend a replica's Engine is built with outside of tests.
func OpenBoltStorage(path string) (StableStorage, error) {
	return openBoltStorage(path)
}

// openBoltStorage opens (creating if absent) a bbolt file at path and
// ensures its buckets exist.
func openBoltStorage(path string) (*boltStorage, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("paxos: open stable storage: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketDecided); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("paxos: init stable storage: %w", err)
	}
	return &boltStorage{db: db}, nil
}

func (s *boltStorage) View() (int32, error) {
	var view int32
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta).Get(keyView)
		if b == nil {
			view = 0
			return nil
		}
		view = int32(binary.BigEndian.Uint32(b))
		return nil
	})
	return view, err
}

func (s *boltStorage) SetView(v int32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(v))
		return tx.Bucket(bucketMeta).Put(keyView, buf[:])
	})
}

func decidedKey(id int32) []byte {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], uint32(id))
	return key[:]
}

func (s *boltStorage) MarkDecided(id int32, view int32, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec := make([]byte, 4+len(value))
		binary.BigEndian.PutUint32(rec[:4], uint32(view))
		copy(rec[4:], value)
		return tx.Bucket(bucketDecided).Put(decidedKey(id), rec)
	})
}

func (s *boltStorage) DecidedValue(id int32) (int32, []byte, bool) {
	var view int32
	var value []byte
	var ok bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		rec := tx.Bucket(bucketDecided).Get(decidedKey(id))
		if rec == nil {
			return nil
		}
		view = int32(binary.BigEndian.Uint32(rec[:4]))
		value = append([]byte(nil), rec[4:]...)
		ok = true
		return nil
	})
	return view, value, ok
}

func (s *boltStorage) ForgetBelow(watermark int32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDecided)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if int32(binary.BigEndian.Uint32(k)) >= watermark {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStorage) InstallSnapshot(lastIncludedID int32, lastIncludedView int32, body []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		var hdr [8]byte
		binary.BigEndian.PutUint32(hdr[0:4], uint32(lastIncludedID))
		binary.BigEndian.PutUint32(hdr[4:8], uint32(lastIncludedView))
		if err := b.Put(keySnapshotHdr, hdr[:]); err != nil {
			return err
		}
		return b.Put(keySnapshotBody, body)
	})
}

func (s *boltStorage) LastSnapshot() (int32, int32, []byte, bool) {
	var id, view int32
	var body []byte
	var ok bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		hdr := b.Get(keySnapshotHdr)
		if hdr == nil {
			return nil
		}
		id = int32(binary.BigEndian.Uint32(hdr[0:4]))
		view = int32(binary.BigEndian.Uint32(hdr[4:8]))
		body = append([]byte(nil), b.Get(keySnapshotBody)...)
		ok = true
		return nil
	})
	return id, view, body, ok
}

func (s *boltStorage) Close() error {
	return s.db.Close()
}

// memStorage is an in-process StableStorage used by tests; it still honours the durability *contract*
// (writes are visible before the call returns) even though nothing
// survives a process restart.
type memStorage struct {
	view     int32
	decided  map[int32][2]interface{}
	snapID   int32
	snapView int32
	snapBody []byte
	hasSnap  bool
}

func newMemStorage() *memStorage {
	return &memStorage{decided: make(map[int32][2]interface{})}
}

// NewMemStorage returns a non-durable StableStorage useful for tests that
// need the durability *contract* (writes visible before the call returns)
// without a file on disk.
func NewMemStorage() StableStorage {
	return newMemStorage()
}

func (s *memStorage) View() (int32, error) { return s.view, nil }

func (s *memStorage) SetView(v int32) error {
	s.view = v
	return nil
}

func (s *memStorage) MarkDecided(id int32, view int32, value []byte) error {
	s.decided[id] = [2]interface{}{view, append([]byte(nil), value...)}
	return nil
}

func (s *memStorage) DecidedValue(id int32) (int32, []byte, bool) {
	rec, ok := s.decided[id]
	if !ok {
		return 0, nil, false
	}
	return rec[0].(int32), rec[1].([]byte), true
}

func (s *memStorage) ForgetBelow(watermark int32) error {
	for id := range s.decided {
		if id < watermark {
			delete(s.decided, id)
		}
	}
	return nil
}

func (s *memStorage) InstallSnapshot(lastIncludedID int32, lastIncludedView int32, body []byte) error {
	s.snapID, s.snapView, s.snapBody, s.hasSnap = lastIncludedID, lastIncludedView, append([]byte(nil), body...), true
	return nil
}

func (s *memStorage) LastSnapshot() (int32, int32, []byte, bool) {
	return s.snapID, s.snapView, s.snapBody, s.hasSnap
}

func (s *memStorage) Close() error { return nil }
