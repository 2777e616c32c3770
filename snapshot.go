package paxos

import "go.uber.org/zap"

// SnapshotManager implements spec §4.8's snapshot policy: ask the service
// for a snapshot once the log grows past a ratio of the last one, force it
// above a higher ratio, and install snapshots received from peers.
type SnapshotManager struct {
	cfg     *Config
	log     *Log
	storage StableStorage
	service Service
	logger  *zap.SugaredLogger

	lastSnapshotBytes int

	// onInstalled is called with the new log low-water mark every time a
	// snapshot lands, whether taken locally or received from a peer. The
	// Engine uses it to keep its execution cursor from trailing behind a
	// watermark that just skipped it forward (spec §4.8, CatchUpSnapshot).
	onInstalled func(watermark int32)

	// adoptView is called when a received snapshot's view outruns the
	// replica's own durable view, so the Acceptor (not just StableStorage)
	// learns of it too (spec §4.8 scenario 6).
	adoptView func(v int32) error
}

func newSnapshotManager(cfg *Config, log *Log, storage StableStorage, service Service, logger *zap.SugaredLogger) *SnapshotManager {
	sm := &SnapshotManager{cfg: cfg, log: log, storage: storage, service: service, logger: logger, lastSnapshotBytes: firstSnapshotSizeEstimate}
	if _, _, body, ok := storage.LastSnapshot(); ok {
		sm.lastSnapshotBytes = len(body)
	}
	return sm
}

// SetOnInstalled registers the Engine's execution-cursor callback.
func (sm *SnapshotManager) SetOnInstalled(h func(watermark int32)) {
	sm.onInstalled = h
}

// SetAdoptView registers the Engine's view-adoption callback (the
// Acceptor's AdoptView), so a received snapshot that outruns the
// replica's own view durably bumps the Acceptor too, not just storage.
func (sm *SnapshotManager) SetAdoptView(h func(v int32) error) {
	sm.adoptView = h
}

func (sm *SnapshotManager) askThreshold() int {
	return maxInt(sm.cfg.SnapshotMinLogSize, int(sm.cfg.SnapshotAskRatio*float64(sm.lastSnapshotBytes)))
}

func (sm *SnapshotManager) forceThreshold() int {
	return int(sm.cfg.SnapshotForceRatio * float64(sm.lastSnapshotBytes))
}

// MaybeSnapshot is called once the Engine has executed every contiguous
// DECIDED instance it holds; it asks the
// service for a snapshot once the policy threshold is crossed. The "force"
// tier (spec: "blocking further appends conceptually") is honoured by the
// Engine declining new client Proposes while over it, not by this method
// itself, which always just takes the snapshot the moment it's due.
func (sm *SnapshotManager) MaybeSnapshot() error {
	size := sm.log.logByteSize()
	if size <= sm.askThreshold() {
		return nil
	}
	return sm.takeSnapshot()
}

// ShouldForceBackpressure reports whether the log has grown past the
// force ratio, the signal the Engine uses to refuse new proposals until a
// snapshot lands.
func (sm *SnapshotManager) ShouldForceBackpressure() bool {
	return sm.log.logByteSize() > sm.forceThreshold()
}

func (sm *SnapshotManager) takeSnapshot() error {
	firstUC := sm.log.firstUncommitted()
	if firstUC == sm.log.first {
		return nil // nothing new has been decided past the last snapshot
	}
	lastIncluded := firstUC - 1
	lastInst := sm.log.getInstance(lastIncluded)
	if lastInst == nil || lastInst.State != StateDecided {
		return nil
	}
	body, err := sm.service.MakeSnapshot()
	if err != nil {
		return protocolViolation("makeSnapshot failed: %v", err)
	}
	if err := sm.storage.InstallSnapshot(lastIncluded, lastInst.View, body); err != nil {
		return storageFailure(err)
	}
	if err := sm.storage.ForgetBelow(firstUC); err != nil {
		return storageFailure(err)
	}
	sm.log.truncateBelow(firstUC)
	sm.lastSnapshotBytes = len(body)
	sm.logger.Infow("snapshot installed", "lastIncludedId", lastIncluded, "bytes", len(body))
	if sm.onInstalled != nil {
		sm.onInstalled(firstUC)
	}
	return nil
}

// InstallReceived applies a CatchUpSnapshot payload received from a peer:
// the service replaces its state wholesale and the log truncates below
// the snapshot's watermark (spec §4.8, "On snapshot receipt, StableStorage
// installs it atomically and truncates the log below its
// lastIncludedInstanceId").
func (sm *SnapshotManager) InstallReceived(lastIncludedID, lastIncludedView int32, body []byte) error {
	if err := sm.storage.InstallSnapshot(lastIncludedID, lastIncludedView, body); err != nil {
		return storageFailure(err)
	}
	localView, err := sm.storage.View()
	if err != nil {
		return storageFailure(err)
	}
	if lastIncludedView > localView {
		if sm.adoptView != nil {
			if err := sm.adoptView(lastIncludedView); err != nil {
				return err
			}
		} else if err := sm.storage.SetView(lastIncludedView); err != nil {
			return storageFailure(err)
		}
	}
	if err := sm.service.UpdateToSnapshot(body); err != nil {
		return protocolViolation("updateToSnapshot failed: %v", err)
	}
	watermark := lastIncludedID + 1
	if err := sm.storage.ForgetBelow(watermark); err != nil {
		return storageFailure(err)
	}
	sm.log.truncateBelow(watermark)
	sm.service.InstanceExecuted(lastIncludedID)
	sm.lastSnapshotBytes = len(body)
	sm.logger.Infow("snapshot received and installed", "lastIncludedId", lastIncludedID)
	if sm.onInstalled != nil {
		sm.onInstalled(watermark)
	}
	return nil
}
