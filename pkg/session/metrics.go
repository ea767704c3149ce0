package session

// Metrics is the instrumentation surface of the hub and worker. A nil
// Metrics disables instrumentation with zero overhead; the Prometheus
// implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// RecordUpdateRelayed counts one relayed update and its recipient count.
	RecordUpdateRelayed(recipients int)

	// RecordStateReplaced counts one full-state compaction.
	RecordStateReplaced()

	// RecordPersist counts one persist attempt by outcome.
	RecordPersist(success bool)

	// RecordRestore counts one version restore by outcome.
	RecordRestore(aborted bool)

	// SetLiveSessions records the current number of resident file sessions.
	SetLiveSessions(n int)

	// SetParticipants records the current number of attached participants.
	SetParticipants(n int)
}
