package paxos

// Service is the state machine adapter the replicated log drives (spec
// §6, "Service adapter (consumed)"). It is the only point where decided
// requests leave the Paxos core.
type Service interface {
	// Execute applies req, decided as part of instanceID, and returns its
	// reply bytes. Called strictly in increasing instanceID order on
	// contiguous DECIDED ids, never out of order and never twice for the
	// same (instanceID, req.ID) pair after a crash recovery replay.
	Execute(instanceID int32, req Request) ([]byte, error)

	// MakeSnapshot serializes the service's current state, to be paired
	// with the log's lastIncludedInstanceId/View by SnapshotManager.
	MakeSnapshot() ([]byte, error)

	// UpdateToSnapshot replaces the service's state wholesale, used when
	// this replica installs a snapshot received from a peer instead of
	// executing every instance from scratch.
	UpdateToSnapshot(body []byte) error

	// InstanceExecuted is a watermark notification: every id <=
	// instanceID has now been applied. Services that maintain their own
	// client-reply dedup cache use this to know what's safe to forget.
	InstanceExecuted(instanceID int32)
}
